package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID     string            `cbor:"id"`
	Count  int64             `cbor:"count"`
	Labels map[string]string `cbor:"labels"`
	When   *int64            `cbor:"when,omitempty"`
}

func TestMarshal_Deterministic(t *testing.T) {
	a := map[string]any{"b": 1, "a": "x", "c": []any{true}}
	b := map[string]any{"c": []any{true}, "a": "x", "b": 1}

	ea, err := Marshal(a)
	require.NoError(t, err)
	eb, err := Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ea, eb)
}

func TestRoundTrip_Struct(t *testing.T) {
	when := int64(1700000000000)
	in := sample{ID: "t-1", Count: 3, Labels: map[string]string{"z": "1", "a": "2"}, When: &when}

	raw, err := Marshal(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshal_AnyUsesStringKeys(t *testing.T) {
	raw, err := Marshal(map[string]any{"nested": map[string]any{"k": "v"}})
	require.NoError(t, err)

	var out any
	require.NoError(t, Unmarshal(raw, &out))
	m, ok := out.(map[string]any)
	require.True(t, ok)
	_, ok = m["nested"].(map[string]any)
	assert.True(t, ok)
}
