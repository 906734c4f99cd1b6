package ring

// Number is the element constraint of Buffer.
type Number interface {
	~int | ~int32 | ~int64 | ~float64
}

// Buffer is a fixed-capacity circular buffer keeping a running sum of its
// elements. Push evicts the oldest element once the buffer is full.
type Buffer[T Number] struct {
	data  []T
	index int // next write position
	size  int
	sum   T
}

// New creates a buffer with a fixed capacity.
func New[T Number](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{data: make([]T, capacity)}
}

// Push appends v and returns the evicted element, if any.
func (b *Buffer[T]) Push(v T) (evicted T, ok bool) {
	if b.size == len(b.data) {
		evicted, ok = b.data[b.index], true
		b.sum -= evicted
	} else {
		b.size++
	}
	b.data[b.index] = v
	b.sum += v
	b.index = (b.index + 1) % len(b.data)
	return evicted, ok
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.data)
}

// Full reports whether Len equals Cap.
func (b *Buffer[T]) Full() bool {
	return b.size == len(b.data)
}

// Sum returns the running sum of stored elements.
func (b *Buffer[T]) Sum() T {
	return b.sum
}

// Values returns the stored elements, oldest first.
func (b *Buffer[T]) Values() []T {
	out := make([]T, b.size)
	start := (b.index - b.size + len(b.data)) % len(b.data)
	for i := 0; i < b.size; i++ {
		out[i] = b.data[(start+i)%len(b.data)]
	}
	return out
}

// Every reports whether the buffer is non-empty and every element equals v.
func (b *Buffer[T]) Every(v T) bool {
	if b.size == 0 {
		return false
	}
	start := (b.index - b.size + len(b.data)) % len(b.data)
	for i := 0; i < b.size; i++ {
		if b.data[(start+i)%len(b.data)] != v {
			return false
		}
	}
	return true
}

// Reset empties the buffer.
func (b *Buffer[T]) Reset() {
	clear(b.data)
	b.index, b.size = 0, 0
	var zero T
	b.sum = zero
}
