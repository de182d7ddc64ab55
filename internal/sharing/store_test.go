package sharing

import (
	"encoding/gob"
	"errors"
	"io"
	"strings"
	"testing"
)

// fakeStore counts lifecycle transitions.
type fakeStore struct {
	storeBase
	inits     int
	shutdowns int
	initErr   error
}

func (s *fakeStore) Init() error {
	s.inits++
	return s.initErr
}

func (s *fakeStore) Shutdown() error {
	s.shutdowns++
	return nil
}

func (s *fakeStore) PutModel(m any) (any, error) { return m, nil }
func (s *fakeStore) GetModel(k any) (any, error) { return k, nil }
func (s *fakeStore) Client() ModelClient         { return s }

func TestActivationLifecycle(t *testing.T) {
	ctx := NewContext()
	s := &fakeStore{}

	outer, err := Enter(ctx, s)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if s.inits != 1 {
		t.Fatalf("expected init on 0->1, got %d inits", s.inits)
	}
	if ctx.ActiveStore() != s {
		t.Fatalf("store should be on top of the active stack")
	}

	inner, err := Enter(ctx, s)
	if err != nil {
		t.Fatalf("nested enter: %v", err)
	}
	if s.inits != 1 {
		t.Fatalf("nested enter must not re-init, got %d inits", s.inits)
	}

	if err := inner.Exit(); err != nil {
		t.Fatalf("inner exit: %v", err)
	}
	if s.shutdowns != 0 {
		t.Fatalf("inner exit must not shut down, got %d shutdowns", s.shutdowns)
	}

	if err := outer.Exit(); err != nil {
		t.Fatalf("outer exit: %v", err)
	}
	if s.shutdowns != 1 {
		t.Fatalf("expected shutdown on 1->0, got %d shutdowns", s.shutdowns)
	}
	if ctx.ActiveStore() != nil {
		t.Fatalf("active stack should be empty")
	}
}

func TestEnterPropagatesInitError(t *testing.T) {
	ctx := NewContext()
	s := &fakeStore{initErr: errors.New("boom")}
	if _, err := Enter(ctx, s); err == nil {
		t.Fatalf("expected init error")
	}
	if ctx.ActiveStore() != nil {
		t.Fatalf("failed enter must not push the store")
	}
}

func TestOutOfOrderExitPanics(t *testing.T) {
	ctx := NewContext()
	a := &fakeStore{}
	b := &fakeStore{}
	actA, _ := Enter(ctx, a)
	actB, _ := Enter(ctx, b)

	_ = actB // keep b entered; a must not pop past it

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-order exit")
		}
	}()
	_ = actA.Exit() // b is on top; this must panic
}

func TestDoubleExitPanics(t *testing.T) {
	ctx := NewContext()
	s := &fakeStore{}
	act, _ := Enter(ctx, s)
	if err := act.Exit(); err != nil {
		t.Fatalf("exit: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double exit")
		}
	}()
	_ = act.Exit()
}

func TestSelectStoreReusesActive(t *testing.T) {
	ctx := NewContext()
	s := &fakeStore{}
	act, _ := Enter(ctx, s)
	defer func() { _ = act.Exit() }()

	first := SelectStore(ctx, true, false)
	second := SelectStore(ctx, true, false)
	if first != ModelStore(s) || second != ModelStore(s) {
		t.Fatalf("expected both selections to reuse the entered store")
	}
}

func TestSelectStoreIgnoresActiveWithoutReuse(t *testing.T) {
	ctx := NewContext()
	s := &fakeStore{}
	act, _ := Enter(ctx, s)
	defer func() { _ = act.Exit() }()

	got := SelectStore(ctx, false, true)
	if got == ModelStore(s) {
		t.Fatalf("reuse=false must not return the active store")
	}
	if _, ok := got.(*NoopStore); !ok {
		t.Fatalf("expected a no-op store, got %T", got)
	}
}

func TestSelectStoreInProcess(t *testing.T) {
	ctx := NewContext()
	if _, ok := SelectStore(ctx, true, true).(*NoopStore); !ok {
		t.Fatalf("expected a no-op store for in-process work")
	}
}

func TestNoopStoreIdentity(t *testing.T) {
	ctx := NewContext()
	s := NewNoopStore()
	act, err := Enter(ctx, s)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	model := []int{1, 2, 3}
	key, err := s.PutModel(model)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Client().GetModel(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if &got.([]int)[0] != &model[0] {
		t.Fatalf("no-op store must return the live model, not a copy")
	}
	if s.Client() != ModelClient(s) {
		t.Fatalf("no-op client should be the store itself")
	}
	if err := act.Exit(); err != nil {
		t.Fatalf("exit: %v", err)
	}
}

func TestEveryStoreRefusesTransfer(t *testing.T) {
	ctx := NewContext()
	stores := map[string]ModelStore{
		"noop": NewNoopStore(),
		"shm":  NewSHMStore(ctx),
		"file": NewFileStore(ctx),
	}
	for name, store := range stores {
		err := gob.NewEncoder(io.Discard).Encode(store)
		if err == nil {
			t.Fatalf("%s: expected error encoding a live store", name)
		}
		if !strings.Contains(err.Error(), "stores cannot be serialized") {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
	}
}

func TestClientForUnknownKey(t *testing.T) {
	if _, err := ClientFor(struct{}{}); !IsProtocol(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}
