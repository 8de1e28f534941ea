package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActions_DoInvokesRegisteredFunction(t *testing.T) {
	a := NewActions()
	total := 0.0
	require.NoError(t, a.Add("expose", func(args Args) (Value, error) {
		c, err := args.Float("quanta_concentration")
		if err != nil {
			return Null, err
		}
		total += c
		return Float(total), nil
	}))

	out, err := a.Do("expose", Args{"quanta_concentration": Float(0.5)})
	require.NoError(t, err)
	f, _ := out.AsFloat()
	assert.Equal(t, 0.5, f)
}

func TestActions_DuplicateAndUnknown(t *testing.T) {
	a := NewActions()
	noop := func(Args) (Value, error) { return Null, nil }
	require.NoError(t, a.Add("noop", noop))

	assert.ErrorIs(t, a.Add("noop", noop), ErrDuplicate)

	_, err := a.Do("missing", nil)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "missing")

	require.NoError(t, a.Delete("noop"))
	assert.True(t, IsNotFound(a.Delete("noop")))
	assert.Empty(t, a.Names())
}

func TestArgs_MissingKey_NotFound(t *testing.T) {
	_, err := Args{}.Float("x")
	assert.True(t, IsNotFound(err))
}
