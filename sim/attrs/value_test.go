package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, "Null", v.String())
	assert.Nil(t, v.Interface())
}

func TestValue_Bytes_CopiedInAndOut(t *testing.T) {
	// GIVEN a value built from a caller-owned slice
	raw := []byte{1, 2, 3}
	v := Bytes(raw)

	// WHEN the caller mutates its slice and the returned copy
	raw[0] = 9
	out, ok := v.AsBytes()
	assert.True(t, ok)
	out[1] = 9

	// THEN the stored value is unaffected
	again, _ := v.AsBytes()
	assert.Equal(t, []byte{1, 2, 3}, again)
}

func TestValue_Set_FrozenAndDeduplicated(t *testing.T) {
	v := Set("infected", "susceptible", "infected")
	members, ok := v.Members()
	assert.True(t, ok)
	assert.Equal(t, []string{"infected", "susceptible"}, members)

	members[0] = "tampered"
	assert.True(t, v.Contains("infected"))
	assert.False(t, v.Contains("tampered"))
}

func TestValue_AsFloat_WidensInt(t *testing.T) {
	f, ok := Int(3).AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = String("3").AsFloat()
	assert.False(t, ok)
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("a").Equal(Int(1)))
	assert.True(t, Set("x", "y").Equal(Set("y", "x")))
	assert.True(t, Bytes([]byte("ab")).Equal(Bytes([]byte("ab"))))
	assert.False(t, Float(1).Equal(Int(1)))
}
