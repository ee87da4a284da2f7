package forgeapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseCacheSetGet(t *testing.T) {
	c := NewResponseCache()
	c.Set("issue:1", 42)

	v, ok := c.Get("issue:1")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = c.Get("issue:2")
	assert.False(t, ok)
}

func TestResponseCacheInvalidatePrefix(t *testing.T) {
	c := NewResponseCache()
	c.Set("issue:1", "a")
	c.Set("issue:2", "b")
	c.Set("labels:all", "c")

	c.InvalidatePrefix("issue:")

	_, ok := c.Get("issue:1")
	assert.False(t, ok)
	_, ok = c.Get("issue:2")
	assert.False(t, ok)

	v, ok := c.Get("labels:all")
	assert.True(t, ok)
	assert.Equal(t, "c", v)
}
