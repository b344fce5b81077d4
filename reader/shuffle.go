package reader

import (
	"golang.org/x/exp/rand"
)

// subsampleSeedSalt decorrelates the subsample PRNG from the shuffle PRNG
// when both derive from the same configured seed.
const subsampleSeedSalt = 0x9e3779b97f4a7c15

// shuffler implements reservoir shuffling over the instance stream. With a
// positive window it holds up to window instances; once full, an incoming
// instance replaces a random resident with probability window/seen and is
// passed straight through otherwise. With window 0 it buffers the whole
// epoch and drains it in random order.
type shuffler struct {
	rng    *rand.Rand
	window int
	buf    []Instance
	seen   uint64
}

func newShuffler(window int, seed uint64) *shuffler {
	return &shuffler{
		rng:    rand.New(rand.NewSource(seed)),
		window: window,
	}
}

// push offers one instance and reports whether an instance was emitted in
// its place.
func (s *shuffler) push(inst Instance) (Instance, bool) {
	s.seen++
	if s.window == 0 || len(s.buf) < s.window {
		s.buf = append(s.buf, inst)
		return Instance{}, false
	}
	if s.rng.Uint64n(s.seen) < uint64(s.window) {
		i := s.rng.Intn(s.window)
		evicted := s.buf[i]
		s.buf[i] = inst
		return evicted, true
	}
	return inst, true
}

// drain returns the residual buffer in random order. The shuffler is empty
// afterwards.
func (s *shuffler) drain() []Instance {
	s.rng.Shuffle(len(s.buf), func(i, j int) {
		s.buf[i], s.buf[j] = s.buf[j], s.buf[i]
	})
	out := s.buf
	s.buf = nil
	return out
}

// discard releases any buffered instances without emitting them.
func (s *shuffler) discard() {
	for _, inst := range s.buf {
		inst.Release()
	}
	s.buf = nil
}

// subsampler is a Bernoulli filter over the instance stream. Its PRNG is
// derived from the shuffle seed so a fixed seed fixes the whole epoch.
type subsampler struct {
	rng   *rand.Rand
	ratio float64
}

func newSubsampler(ratio float64, seed uint64) *subsampler {
	return &subsampler{
		rng:   rand.New(rand.NewSource(seed ^ subsampleSeedSalt)),
		ratio: ratio,
	}
}

func (s *subsampler) keep() bool {
	return s.ratio >= 1 || s.rng.Float64() < s.ratio
}
