package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_GetAndDrop(t *testing.T) {
	f := &recordingFetcher{}
	r := NewRegistry(Options{})
	defer r.Close()

	a := r.Get("s1", "brands", "/configure/brands", f)
	assert.Same(t, a, r.Get("s1", "brands", "/configure/brands", f))
	b := r.Get("s1", "roles", "/roles", f)
	c := r.Get("s2", "brands", "/configure/brands", f)
	assert.NotSame(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 3, r.Len())

	waitState(t, a)
	assert.Equal(t, Loaded, a.State().Phase)

	r.DropSession("s1")
	assert.Equal(t, 1, r.Len())
	_, ok := r.Lookup("s1", "brands")
	assert.False(t, ok)
	_, ok = r.Lookup("s2", "brands")
	assert.True(t, ok)
}

func TestRegistry_EvictIdle(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()

	r.Get("s1", "brands", "/configure/brands", &recordingFetcher{})
	time.Sleep(20 * time.Millisecond)
	fresh := r.Get("s2", "brands", "/configure/brands", &recordingFetcher{})

	assert.Equal(t, 1, r.EvictIdle(10*time.Millisecond))
	_, ok := r.Lookup("s2", "brands")
	assert.True(t, ok)
	waitState(t, fresh)
}
