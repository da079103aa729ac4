package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[int]()

	require.NoError(t, r.Register("one", 1))
	require.NoError(t, r.Register("two", 2))

	v, ok := r.Get("one")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = r.Get("three")
	assert.False(t, ok)
}

func TestRegisterDuplicate(t *testing.T) {
	r := New[string]()

	require.NoError(t, r.Register("a", "first"))
	err := r.Register("a", "second")
	require.Error(t, err)

	v, _ := r.Get("a")
	assert.Equal(t, "first", v)
}

func TestRegisterEmptyName(t *testing.T) {
	r := New[string]()
	assert.Error(t, r.Register("", "x"))
}

func TestReplace(t *testing.T) {
	r := New[string]()

	require.NoError(t, r.Register("a", "first"))
	require.NoError(t, r.Replace("a", "second"))

	v, _ := r.Get("a")
	assert.Equal(t, "second", v)
}

func TestNamesSorted(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Register("zeta", 1))
	require.NoError(t, r.Register("alpha", 2))
	require.NoError(t, r.Register("mid", 3))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestRemoveAndCount(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Register("b", 2))
	assert.Equal(t, 2, r.Count())

	require.NoError(t, r.Remove("a"))
	assert.Equal(t, 1, r.Count())
	assert.Error(t, r.Remove("a"))

	r.Clear()
	assert.Equal(t, 0, r.Count())
}
