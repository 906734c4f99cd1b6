package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPushEvict(t *testing.T) {
	b := New[int](3)

	for _, v := range []int{1, 1, -1} {
		_, ok := b.Push(v)
		assert.False(t, ok)
	}
	assert.True(t, b.Full())
	assert.Equal(t, 1, b.Sum())

	evicted, ok := b.Push(-1)
	assert.True(t, ok)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, []int{1, -1, -1}, b.Values())
	assert.Equal(t, -1, b.Sum())
	assert.Equal(t, 3, b.Len())
}

func TestBufferNeverExceedsCapacity(t *testing.T) {
	b := New[int](5)
	sum := 0
	window := []int{}
	for i := 0; i < 100; i++ {
		v := i%7 - 3
		b.Push(v)
		window = append(window, v)
		if len(window) > 5 {
			window = window[1:]
		}
		assert.LessOrEqual(t, b.Len(), b.Cap())
	}
	for _, v := range window {
		sum += v
	}
	assert.Equal(t, window, b.Values())
	assert.Equal(t, sum, b.Sum())
}

func TestBufferEvery(t *testing.T) {
	b := New[int](3)
	assert.False(t, b.Every(1))

	b.Push(1)
	b.Push(1)
	assert.True(t, b.Every(1))
	b.Push(-1)
	assert.False(t, b.Every(1))

	b.Reset()
	assert.Zero(t, b.Len())
	assert.Zero(t, b.Sum())
	assert.Empty(t, b.Values())
}
