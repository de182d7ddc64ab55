package codec

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

// pairModel splits into two buffers with a tiny structural header.
type pairModel struct {
	Label string
	Left  []byte
	Right []byte
}

func init() { Register(&pairModel{}) }

func (m *pairModel) MarshalShared() ([]byte, [][]byte, error) {
	return []byte(m.Label), [][]byte{m.Left, m.Right}, nil
}

func (m *pairModel) UnmarshalShared(meta []byte, bufs [][]byte) error {
	if len(bufs) != 2 {
		return fmt.Errorf("want 2 buffers, got %d", len(bufs))
	}
	m.Label = string(meta)
	m.Left, m.Right = bufs[0], bufs[1]
	return nil
}

// strayModel is deliberately never registered.
type strayModel struct{}

func (m *strayModel) MarshalShared() ([]byte, [][]byte, error) { return nil, nil, nil }
func (m *strayModel) UnmarshalShared([]byte, [][]byte) error   { return nil }

func TestInlineRoundTrip(t *testing.T) {
	for _, model := range []any{
		[]int{1, 2, 3},
		[]float64{0.5, 1.5},
		[]string{"a", "b"},
		map[string]float64{"x": 1},
	} {
		header, err := Encode(model, nil)
		if err != nil {
			t.Fatalf("encode %T: %v", model, err)
		}
		got, err := Decode(header, nil)
		if err != nil {
			t.Fatalf("decode %T: %v", model, err)
		}
		if fmt.Sprint(got) != fmt.Sprint(model) {
			t.Fatalf("round trip mismatch: %v != %v", got, model)
		}
	}
}

func TestExternalExtractionOrder(t *testing.T) {
	m := &pairModel{Label: "pair", Left: []byte("left"), Right: []byte("right")}

	var extracted [][]byte
	header, err := Encode(m, func(b []byte) { extracted = append(extracted, b) })
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(extracted) != 2 {
		t.Fatalf("expected 2 extracted buffers, got %d", len(extracted))
	}
	if !bytes.Equal(extracted[0], []byte("left")) || !bytes.Equal(extracted[1], []byte("right")) {
		t.Fatalf("extraction order not preserved: %q, %q", extracted[0], extracted[1])
	}

	got, err := Decode(header, extracted)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	back := got.(*pairModel)
	if back.Label != "pair" || string(back.Left) != "left" || string(back.Right) != "right" {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestExternalWithoutHookInlines(t *testing.T) {
	m := &pairModel{Label: "p", Left: []byte{1}, Right: []byte{2}}
	header, err := Encode(m, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// no hook, so the value went inline and needs no buffers
	got, err := Decode(header, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	back, ok := got.(*pairModel)
	if !ok {
		t.Fatalf("decoded %T, want *pairModel", got)
	}
	if back.Label != "p" || !bytes.Equal(back.Left, []byte{1}) || !bytes.Equal(back.Right, []byte{2}) {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestBufferCountMismatch(t *testing.T) {
	m := &pairModel{Label: "p", Left: []byte{1}, Right: []byte{2}}
	var bufs [][]byte
	header, err := Encode(m, func(b []byte) { bufs = append(bufs, b) })
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(header, bufs[:1]); err == nil {
		t.Fatalf("expected error for missing buffer")
	}
	if _, err := Decode(header, append(bufs, []byte{9})); err == nil {
		t.Fatalf("expected error for extra buffer")
	}
}

func TestInlineRejectsBuffers(t *testing.T) {
	header, err := Encode([]int{1}, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(header, [][]byte{{1}}); err == nil {
		t.Fatalf("expected error for buffers on an inline value")
	}
}

func TestUnregisteredTypeFails(t *testing.T) {
	_, err := Encode(&strayModel{}, func([]byte) {})
	if err == nil {
		t.Fatalf("expected registration error")
	}
}

func TestMarshalErrorPropagates(t *testing.T) {
	m := &erroringModel{}
	if _, err := Encode(m, func([]byte) {}); !errors.Is(err, errMarshal) {
		t.Fatalf("expected marshal error, got %v", err)
	}
}

var errMarshal = errors.New("marshal failed")

type erroringModel struct{}

func init() { Register(&erroringModel{}) }

func (m *erroringModel) MarshalShared() ([]byte, [][]byte, error) { return nil, nil, errMarshal }
func (m *erroringModel) UnmarshalShared([]byte, [][]byte) error   { return nil }
