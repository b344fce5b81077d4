package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shuffleAll(s *shuffler, count int) []uint64 {
	var out []uint64
	for i := 0; i < count; i++ {
		if inst, ok := s.push(Instance{Ordinal: uint64(i)}); ok {
			out = append(out, inst.Ordinal)
		}
	}
	for _, inst := range s.drain() {
		out = append(out, inst.Ordinal)
	}
	return out
}

func TestShufflerIsPermutation(t *testing.T) {
	for _, window := range []int{0, 1, 5, 100, 1000} {
		got := shuffleAll(newShuffler(window, 42), 500)
		require.Len(t, got, 500, "window %d", window)
		seen := map[uint64]bool{}
		for _, v := range got {
			seen[v] = true
		}
		assert.Len(t, seen, 500, "window %d", window)
	}
}

func TestShufflerDeterministicForSeed(t *testing.T) {
	first := shuffleAll(newShuffler(16, 7), 200)
	second := shuffleAll(newShuffler(16, 7), 200)
	assert.Equal(t, first, second)

	other := shuffleAll(newShuffler(16, 8), 200)
	assert.NotEqual(t, first, other)
}

func TestShufflerPerfectWindowBuffersEverything(t *testing.T) {
	s := newShuffler(0, 1)
	for i := 0; i < 50; i++ {
		_, emitted := s.push(Instance{Ordinal: uint64(i)})
		assert.False(t, emitted)
	}
	assert.Len(t, s.drain(), 50)
}

func TestSubsamplerRatioOne(t *testing.T) {
	s := newSubsampler(1, 3)
	for i := 0; i < 100; i++ {
		assert.True(t, s.keep())
	}
}

func TestSubsamplerApproximatesRatio(t *testing.T) {
	s := newSubsampler(0.25, 99)
	kept := 0
	for i := 0; i < 10000; i++ {
		if s.keep() {
			kept++
		}
	}
	assert.InDelta(t, 2500, kept, 300)
}
