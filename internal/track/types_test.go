package track

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassColors(t *testing.T) {
	assert.Equal(t, ColorTransparent, ClassOK.Color())
	assert.Equal(t, ColorAlert, ClassAL.Color())
	assert.Equal(t, ColorIntervention, ClassIL.Color())
	assert.Equal(t, ColorImmediate, ClassIAL.Color())

	// The class colour follows the same tier rule as threshold lines.
	for _, c := range []Class{ClassAL, ClassIL, ClassIAL} {
		assert.Equal(t, TierColor(c.Tier()), c.Color(), c.String())
	}
	assert.Equal(t, ColorAlert, TierColor(7))
}

func TestClassText(t *testing.T) {
	for _, c := range []Class{ClassOK, ClassAL, ClassIL, ClassIAL} {
		text, err := c.MarshalText()
		require.NoError(t, err)

		var back Class
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, c, back)
	}
}

func TestPointJSON(t *testing.T) {
	data, err := json.Marshal([]Point{{Position: 1, Value: 2.5}, {Position: 2, Value: math.NaN()}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"x":1,"y":2.5},{"x":2,"y":null}]`, string(data))

	var back []Point
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 2)
	assert.True(t, back[0].Valid())
	assert.False(t, back[1].Valid())
}

func TestErrorClasses(t *testing.T) {
	cause := errors.New("unexpected EOF")
	var err error = fmt.Errorf("decode: %w", &InvalidInputError{Reason: "payload", Err: cause})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrConfiguration)

	var cfg *ConfigurationError
	err = &ConfigurationError{Field: "defect_scale", Reason: "must be positive"}
	assert.ErrorIs(t, err, ErrConfiguration)
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "defect_scale", cfg.Field)

	err = &DataOrderingError{Index: 3, Previous: 10, Position: 9}
	assert.ErrorIs(t, err, ErrDataOrdering)
	assert.Contains(t, err.Error(), "index 3")
}
