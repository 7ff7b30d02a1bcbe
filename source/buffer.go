package source

// Buffer holds the transient random bytes of one generation.
// It must be wiped as soon as the bytes have been encoded.
type Buffer struct {
	data    []byte
	quality Quality
	origin  string
}

func newBuffer(n int) *Buffer {
	return &Buffer{data: make([]byte, n)}
}

// Bytes exposes the random bytes. The slice is zeroed by Wipe.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Len is the number of random bytes held.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

func (b *Buffer) Quality() Quality { return b.quality }

// Origin names the tier that produced the bytes.
func (b *Buffer) Origin() string { return b.origin }

// Wipe zeros the bytes and drops the reference to them.
func (b *Buffer) Wipe() {
	if b == nil || b.data == nil {
		return
	}
	for i := range b.data {
		b.data[i] = 0
	}
	b.data = nil
}
