// Package codec encodes models to bytes with out-of-band extraction of large
// buffers. Ordinary values are gob-encoded inline. Model types that implement
// ExternalBuffer instead split into a small structural header plus raw
// payload buffers; when an extraction hook is supplied, the buffers never
// enter the header and the decoder re-binds them positionally.
package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"
	"sync"
)

// ExternalBuffer is the capability a model type implements so its dominant
// byte payloads can travel out of band (for example through shared memory)
// instead of being copied into the encoded header.
type ExternalBuffer interface {
	// MarshalShared returns the model's structural bytes and its raw payload
	// buffers. The buffers must not appear in the structural bytes; their
	// order is significant and must match UnmarshalShared.
	MarshalShared() (meta []byte, bufs [][]byte, err error)
	// UnmarshalShared rebuilds the model from structural bytes and payload
	// buffers, supplied in the exact order MarshalShared produced them. The
	// buffers may alias memory owned by the transport; implementations must
	// treat them as read-only.
	UnmarshalShared(meta []byte, bufs [][]byte) error
}

const (
	kindInline   = 1
	kindExternal = 2
)

// envelope is the wire form of an encoded model.
type envelope struct {
	Kind    uint8
	Type    string // registered ExternalBuffer type, external only
	Meta    []byte // structural bytes, external only
	NumBufs int    // external only
	Value   inlineValue
}

// inlineValue wraps the inline payload so gob records its concrete type.
type inlineValue struct{ V any }

var (
	regMu    sync.RWMutex
	registry = map[string]reflect.Type{}
)

// Register records an ExternalBuffer model type so decoders can instantiate
// it by name, in the manner of gob.Register. Call from the type's package
// init. Registration also covers the inline path, so the type round-trips
// when no extraction hook is in play.
func Register(v ExternalBuffer) {
	gob.Register(v)
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	regMu.Lock()
	registry[typeName(t)] = t
	regMu.Unlock()
}

func typeName(t reflect.Type) string {
	return t.PkgPath() + "." + t.Name()
}

func init() {
	// Common concrete types for the inline path; anything else the caller
	// registers with gob.Register before encoding.
	gob.Register([]int(nil))
	gob.Register([]int64(nil))
	gob.Register([]float64(nil))
	gob.Register([]string(nil))
	gob.Register(map[string]float64(nil))
}

// Encode serializes model into a header byte sequence. When model implements
// ExternalBuffer and extract is non-nil, each detached buffer is handed to
// extract in order instead of being inlined; the header then records only
// structure. With a nil extract everything is encoded inline.
func Encode(model any, extract func(buf []byte)) ([]byte, error) {
	var env envelope
	if xb, ok := model.(ExternalBuffer); ok && extract != nil {
		t := reflect.TypeOf(xb)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		name := typeName(t)
		regMu.RLock()
		_, registered := registry[name]
		regMu.RUnlock()
		if !registered {
			return nil, fmt.Errorf("codec: model type %s is not registered", name)
		}
		meta, bufs, err := xb.MarshalShared()
		if err != nil {
			return nil, fmt.Errorf("codec: marshal %s: %w", name, err)
		}
		for _, b := range bufs {
			extract(b)
		}
		env = envelope{Kind: kindExternal, Type: name, Meta: meta, NumBufs: len(bufs)}
	} else {
		env = envelope{Kind: kindInline, Value: inlineValue{V: model}}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return nil, fmt.Errorf("codec: encode header: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reconstructs a model from a header and the buffers extracted during
// Encode, in the same order. A buffer count or structure mismatch is an
// error; decode never reads past the supplied views.
func Decode(header []byte, buffers [][]byte) (any, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(header)).Decode(&env); err != nil {
		return nil, fmt.Errorf("codec: decode header: %w", err)
	}
	switch env.Kind {
	case kindInline:
		if len(buffers) != 0 {
			return nil, fmt.Errorf("codec: %d buffers supplied for an inline value", len(buffers))
		}
		return env.Value.V, nil
	case kindExternal:
		if len(buffers) != env.NumBufs {
			return nil, fmt.Errorf("codec: model %s wants %d buffers, got %d", env.Type, env.NumBufs, len(buffers))
		}
		regMu.RLock()
		t, ok := registry[env.Type]
		regMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("codec: model type %s is not registered", env.Type)
		}
		xb := reflect.New(t).Interface().(ExternalBuffer)
		if err := xb.UnmarshalShared(env.Meta, buffers); err != nil {
			return nil, fmt.Errorf("codec: unmarshal %s: %w", env.Type, err)
		}
		return xb, nil
	default:
		return nil, fmt.Errorf("codec: unknown envelope kind %d", env.Kind)
	}
}
