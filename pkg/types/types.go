// Package types holds the portable model types shared by the CLI, the batch
// scorer, and the sharing tests.
package types

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"unsafe"

	"modelshare/internal/codec"
)

// Scorer produces a preference score for an item; higher is better.
type Scorer interface {
	Score(item string) float64
}

// Rating is one observed user/item interaction.
type Rating struct {
	User  string
	Item  string
	Value float64
}

// ItemBias is a bias scoring model: a global mean plus one learned offset
// per item. The offsets live in a single contiguous buffer so the model can
// be handed to worker processes through shared memory without re-encoding.
type ItemBias struct {
	Mean    float64
	Items   []string
	Offsets []float64

	idx map[string]int
}

func init() {
	codec.Register(&ItemBias{})
}

// FitItemBias estimates the global mean and per-item offsets from ratings.
func FitItemBias(ratings []Rating) *ItemBias {
	b := &ItemBias{}
	if len(ratings) == 0 {
		b.buildIndex()
		return b
	}
	var total float64
	for _, r := range ratings {
		total += r.Value
	}
	b.Mean = total / float64(len(ratings))

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, r := range ratings {
		if _, seen := counts[r.Item]; !seen {
			b.Items = append(b.Items, r.Item)
		}
		sums[r.Item] += r.Value - b.Mean
		counts[r.Item]++
	}
	b.Offsets = make([]float64, len(b.Items))
	for i, item := range b.Items {
		b.Offsets[i] = sums[item] / float64(counts[item])
	}
	b.buildIndex()
	return b
}

// NewItemBias builds a model from precomputed parameters. Items and offsets
// must be the same length.
func NewItemBias(mean float64, items []string, offsets []float64) (*ItemBias, error) {
	if len(items) != len(offsets) {
		return nil, fmt.Errorf("itembias: %d items but %d offsets", len(items), len(offsets))
	}
	b := &ItemBias{Mean: mean, Items: items, Offsets: offsets}
	b.buildIndex()
	return b, nil
}

// Score returns the predicted preference for item: the global mean plus the
// item's offset, or the bare mean for unknown items.
func (b *ItemBias) Score(item string) float64 {
	if b.idx == nil {
		b.buildIndex()
	}
	if i, ok := b.idx[item]; ok {
		return b.Mean + b.Offsets[i]
	}
	return b.Mean
}

func (b *ItemBias) buildIndex() {
	b.idx = make(map[string]int, len(b.Items))
	for i, item := range b.Items {
		b.idx[item] = i
	}
}

func (b *ItemBias) String() string {
	return fmt.Sprintf("ItemBias(%d items)", len(b.Items))
}

// itemBiasMeta is the structural part of the model; the offsets travel out
// of band.
type itemBiasMeta struct {
	Mean  float64
	Items []string
	N     int
}

// MarshalShared detaches the offsets buffer for out-of-band transport and
// gob-encodes the rest.
func (b *ItemBias) MarshalShared() ([]byte, [][]byte, error) {
	var meta bytes.Buffer
	err := gob.NewEncoder(&meta).Encode(itemBiasMeta{Mean: b.Mean, Items: b.Items, N: len(b.Offsets)})
	if err != nil {
		return nil, nil, err
	}
	return meta.Bytes(), [][]byte{float64Bytes(b.Offsets)}, nil
}

// UnmarshalShared rebuilds the model around the supplied offsets buffer. The
// buffer may alias transport-owned memory (a mapped segment); the model only
// ever reads it.
func (b *ItemBias) UnmarshalShared(meta []byte, bufs [][]byte) error {
	if len(bufs) != 1 {
		return fmt.Errorf("itembias: want 1 buffer, got %d", len(bufs))
	}
	var m itemBiasMeta
	if err := gob.NewDecoder(bytes.NewReader(meta)).Decode(&m); err != nil {
		return err
	}
	if len(bufs[0]) != m.N*8 {
		return fmt.Errorf("itembias: offsets buffer is %d bytes, want %d", len(bufs[0]), m.N*8)
	}
	if len(m.Items) != m.N {
		return fmt.Errorf("itembias: %d items but %d offsets", len(m.Items), m.N)
	}
	b.Mean = m.Mean
	b.Items = m.Items
	b.Offsets = bytesFloat64(bufs[0], m.N)
	b.buildIndex()
	return nil
}

// float64Bytes views the offsets as raw bytes without copying.
func float64Bytes(f []float64) []byte {
	if len(f) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&f[0])), len(f)*8)
}

// bytesFloat64 views a byte buffer as float64s without copying. The buffer
// must be 8-byte aligned, which holds for both mapped segments (page
// aligned) and heap allocations of this size.
func bytesFloat64(b []byte, n int) []float64 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&b[0])), n)
}
