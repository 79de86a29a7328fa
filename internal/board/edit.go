package board

import "github.com/boardsync/server/internal/apperr"

// EditKind tags which variant an Edit carries.
type EditKind string

const (
	EditAdd    EditKind = "add"
	EditRemove EditKind = "remove"
	EditModify EditKind = "modify"
)

// Edit is a single atomic change to the drawing: add, remove, or modify a
// set of shapes. Exactly one of the per-kind fields is meaningful,
// selected by Kind; Edit deliberately keeps Add/Remove/Modify as flat
// fields rather than an interface{} so JSON round-trips without a custom
// unmarshaler.
type Edit struct {
	Kind EditKind `json:"kind"`
	ID   string   `json:"id"`

	// EditAdd
	Shape *Shape `json:"shape,omitempty"`

	// EditRemove
	Shapes []Shape `json:"shapes,omitempty"`

	// EditModify
	Current []Shape `json:"current,omitempty"`
	Initial []Shape `json:"initial,omitempty"`
}

// Validate applies the push-validation rules from the edit log semantics:
// the id must be present and exactly 36 characters, and every embedded
// Shape must satisfy Shape.Validate. The first failing shape short-
// circuits validation.
func (e Edit) Validate() error {
	if len(e.ID) != EditIDLength {
		return apperr.Wrap(apperr.Validation, "id must be 36 chars long", apperr.ErrBadEditID)
	}
	switch e.Kind {
	case EditAdd:
		if e.Shape == nil {
			return apperr.New(apperr.Validation, "shape is missing")
		}
		return e.Shape.Validate()
	case EditRemove:
		for _, s := range e.Shapes {
			if err := s.Validate(); err != nil {
				return err
			}
		}
	case EditModify:
		for _, s := range e.Current {
			if err := s.Validate(); err != nil {
				return err
			}
		}
		for _, s := range e.Initial {
			if err := s.Validate(); err != nil {
				return err
			}
		}
	default:
		return apperr.New(apperr.Validation, "unknown edit kind")
	}
	return nil
}
