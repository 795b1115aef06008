package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest(t *testing.T) {
	a, err := Digest(map[string]int{"a": 1, "b": 2, "c": 3})
	require.NoError(t, err)
	b, err := Digest(map[string]int{"c": 3, "b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := Digest(map[string]int{"a": 1, "b": 2, "c": 4})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = Digest(make(chan int))
	assert.Error(t, err)
}
