// Package rng provides reproducible, derivable random seeds: a root seed
// plus a trail of keys deterministically yields independent child seeds, so
// an experiment seeded once produces the same streams in every component and
// on every rerun.
package rng

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math/rand/v2"
)

// SeedSequence identifies a point in the seed tree: root entropy plus the
// spawn key leading here. Deriving with the same keys always lands on the
// same sequence.
type SeedSequence struct {
	entropy  uint64
	spawnKey []uint32
	children int
}

// NewSeedSequence returns a sequence rooted at entropy, optionally descended
// through keys. Keys may be ints, strings, or byte slices; strings and bytes
// are folded with crc32.
func NewSeedSequence(entropy uint64, keys ...any) (*SeedSequence, error) {
	s := &SeedSequence{entropy: entropy}
	if len(keys) == 0 {
		return s, nil
	}
	return s.Derive(keys...)
}

// Derive returns the child sequence reached by appending keys to the spawn
// key. With no keys it spawns the next sequential child instead.
func (s *SeedSequence) Derive(keys ...any) (*SeedSequence, error) {
	if len(keys) == 0 {
		return s.Spawn(), nil
	}
	key := make([]uint32, 0, len(s.spawnKey)+len(keys))
	key = append(key, s.spawnKey...)
	for _, k := range keys {
		n, err := foldKey(k)
		if err != nil {
			return nil, err
		}
		key = append(key, n)
	}
	return &SeedSequence{entropy: s.entropy, spawnKey: key}, nil
}

// Spawn returns the next sequential child sequence. Each call yields a
// distinct child.
func (s *SeedSequence) Spawn() *SeedSequence {
	key := make([]uint32, 0, len(s.spawnKey)+1)
	key = append(key, s.spawnKey...)
	key = append(key, uint32(s.children))
	s.children++
	return &SeedSequence{entropy: s.entropy, spawnKey: key}
}

// Entropy returns the root entropy the sequence descends from.
func (s *SeedSequence) Entropy() uint64 { return s.entropy }

// state hashes the entropy and spawn key into two 64-bit generator seeds.
func (s *SeedSequence) state() (uint64, uint64) {
	h := sha256.New()
	var w [8]byte
	binary.LittleEndian.PutUint64(w[:], s.entropy)
	h.Write(w[:])
	for _, k := range s.spawnKey {
		var kw [4]byte
		binary.LittleEndian.PutUint32(kw[:], k)
		h.Write(kw[:])
	}
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:16])
}

// RNG returns a deterministic generator seeded from the sequence state.
func (s *SeedSequence) RNG() *rand.Rand {
	hi, lo := s.state()
	return rand.New(rand.NewPCG(hi, lo))
}

func foldKey(k any) (uint32, error) {
	switch v := k.(type) {
	case int:
		return uint32(v), nil
	case uint32:
		return v, nil
	case string:
		return crc32.ChecksumIEEE([]byte(v)), nil
	case []byte:
		return crc32.ChecksumIEEE(v), nil
	default:
		return 0, fmt.Errorf("rng: invalid seed key type %T", k)
	}
}

// root is the process-wide seed sequence; lazily randomized when nothing
// initialized it.
var root *SeedSequence

// InitRNG installs the process root seed, optionally descended through keys.
// Call early in setup, before anything derives from the root.
func InitRNG(entropy uint64, keys ...any) (*SeedSequence, error) {
	s, err := NewSeedSequence(entropy, keys...)
	if err != nil {
		return nil, err
	}
	root = s
	return s, nil
}

// RootSeed returns the process root seed, creating a randomized one when
// InitRNG was never called.
func RootSeed() *SeedSequence {
	if root == nil {
		root = &SeedSequence{entropy: rand.Uint64()}
	}
	return root
}

// Derive derives a child of the process root seed.
func Derive(keys ...any) (*SeedSequence, error) {
	return RootSeed().Derive(keys...)
}
