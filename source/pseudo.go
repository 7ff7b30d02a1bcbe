package source

import (
	"encoding/binary"
	mrand "math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// streams keeps two pseudo readers created in the same nanosecond apart.
var streams atomic.Uint64

// PseudoReader is an io.Reader over a time-seeded PCG generator.
// It is NOT suitable for key material and only backs the degraded tier.
type PseudoReader struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewPseudoReader seeds a PCG stream from the wall clock.
func NewPseudoReader() *PseudoReader {
	seed := uint64(time.Now().UnixNano())
	return NewSeededPseudoReader(seed, streams.Add(1))
}

// NewSeededPseudoReader creates a deterministic stream, mostly for tests.
func NewSeededPseudoReader(seed1, seed2 uint64) *PseudoReader {
	return &PseudoReader{rng: mrand.New(mrand.NewPCG(seed1, seed2))}
}

func (p *PseudoReader) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fill(b, p.rng.Uint64)
	return len(b), nil
}

// lastResort fills b from the runtime-seeded global generator, which cannot fail.
func lastResort(b []byte) {
	fill(b, mrand.Uint64)
}

func fill(b []byte, next func() uint64) {
	var word [8]byte
	for i := 0; i < len(b); i += len(word) {
		binary.LittleEndian.PutUint64(word[:], next())
		copy(b[i:], word[:])
	}
	clear(word[:])
}
