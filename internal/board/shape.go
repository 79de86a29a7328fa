package board

import "github.com/boardsync/server/internal/apperr"

// MaxDimensionSize bounds every numeric geometry field on a Shape.
const MaxDimensionSize = 10_000.0

// MaxImageLength bounds the byte length of a Shape's embedded image URL.
const MaxImageLength = 60_000

// MaxTitleLength bounds a Room's title, in code points.
const MaxTitleLength = 36

// EditIDLength is the exact length required of an Edit id.
const EditIDLength = 36

// ToolType enumerates the drawing tool that produced a Shape.
type ToolType string

// ShapeKind enumerates the geometric primitive a Shape represents.
type ShapeKind string

// Shape is the geometry and styling of a single drawn primitive.
type Shape struct {
	ID        string    `json:"id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Height    float64   `json:"height"`
	Width     float64   `json:"width"`
	RadiusX   float64   `json:"radiusX"`
	RadiusY   float64   `json:"radiusY"`
	LineSize  float64   `json:"lineSize"`
	ScaleX    float64   `json:"scaleX"`
	ScaleY    float64   `json:"scaleY"`
	Rotation  float64   `json:"rotation"`
	SkewX     float64   `json:"skewX"`
	SkewY     float64   `json:"skewY"`
	Tool      ToolType  `json:"tool"`
	ShapeType ShapeKind `json:"shapeType"`
	Color     string    `json:"color"`
	Points    []float64 `json:"points,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// Validate checks the dimensional and payload bounds a Shape must satisfy
// to be accepted by Push. scale_x/scale_y are validated as dimensional
// bounds despite being multiplicative factors: this is intentional, per
// the design's resolution of that open question, not an oversight.
func (s Shape) Validate() error {
	if s.LineSize > MaxDimensionSize {
		return apperr.Wrap(apperr.Validation, "line_size is too large", apperr.ErrShapeFieldTooLarge)
	}
	if s.Height > MaxDimensionSize || s.Width > MaxDimensionSize {
		return apperr.Wrap(apperr.Validation, "height or width is too large", apperr.ErrShapeFieldTooLarge)
	}
	if s.RadiusX > MaxDimensionSize || s.RadiusY > MaxDimensionSize {
		return apperr.Wrap(apperr.Validation, "radius_x or radius_y is too large", apperr.ErrShapeFieldTooLarge)
	}
	if s.ScaleX > MaxDimensionSize || s.ScaleY > MaxDimensionSize {
		return apperr.Wrap(apperr.Validation, "scale_x or scale_y is too large", apperr.ErrShapeFieldTooLarge)
	}
	if len(s.URL) > MaxImageLength {
		return apperr.Wrap(apperr.Validation, "image url is too large", apperr.ErrImageTooLarge)
	}
	return nil
}
