package board

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoom_GeneratesDistinctSecrets(t *testing.T) {
	r, err := NewRoom("pub1", "my board", Size{Height: 100, Width: 100}, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, r.PrivateID)
	assert.NotEmpty(t, r.CoEditorPrivateID)
	assert.NotEqual(t, r.PrivateID, r.CoEditorPrivateID)
	assert.NotNil(t, r.Log)
}

func TestNewRoom_RejectsOversizedTitle(t *testing.T) {
	_, err := NewRoom("pub1", strings.Repeat("x", MaxTitleLength+1), Size{}, nil)
	assert.Error(t, err)
}

func TestNewRoom_RejectsOversizedCanvas(t *testing.T) {
	_, err := NewRoom("pub1", "title", Size{Height: MaxDimensionSize + 1}, nil)
	assert.Error(t, err)
}

func TestHydrate_TrustsStoredSecretsWithoutRevalidation(t *testing.T) {
	oversizedTitle := strings.Repeat("x", MaxTitleLength+1)
	r := Hydrate("pub1", "priv1", "co1", oversizedTitle, Size{}, nil, NewEditLog(nil, nil))

	assert.Equal(t, oversizedTitle, r.Title)
	assert.Equal(t, "priv1", r.PrivateID)
}

func TestRoom_SetTitleRejectsOversizedTitle(t *testing.T) {
	r, err := NewRoom("pub1", "title", Size{}, nil)
	require.NoError(t, err)

	err = r.SetTitle(strings.Repeat("x", MaxTitleLength+1))
	assert.Error(t, err)
	assert.Equal(t, "title", r.Title, "a rejected title must not be applied")
}

func TestRoom_SetSizeRejectsOversizedCanvas(t *testing.T) {
	r, err := NewRoom("pub1", "title", Size{Height: 10, Width: 10}, nil)
	require.NoError(t, err)

	err = r.SetSize(Size{Height: MaxDimensionSize + 1})
	assert.Error(t, err)
	assert.Equal(t, uint32(10), r.Size.Height)
}

func TestRoom_RotateCoEditorTokenChangesTheToken(t *testing.T) {
	r, err := NewRoom("pub1", "title", Size{}, nil)
	require.NoError(t, err)
	old := r.CoEditorPrivateID

	token, err := r.RotateCoEditorToken()
	require.NoError(t, err)

	assert.NotEqual(t, old, token)
	assert.Equal(t, token, r.CoEditorPrivateID)
}
