// Package sharing moves fitted models between a producer process and worker
// processes without re-encoding them through a pipe for every transfer.
//
// A ModelStore turns a model into a small portable key; a ModelClient in any
// process resolves the key back into the model. The shared-memory store backs
// large model buffers with named OS segments so workers map them instead of
// copying. Stores are entered as reentrant scopes on a Context; the first
// entry initializes the store and the last exit releases everything it owns.
package sharing

import (
	"fmt"

	"modelshare/internal/shm"
)

// ModelClient resolves keys produced by a ModelStore back into models.
// Clients are cheap to copy and safe to hand to worker processes.
type ModelClient interface {
	// GetModel returns the model previously stored under key.
	GetModel(key any) (any, error)
}

// ModelStore stores models for access across processes. Every store is also
// usable as a client for local resolution, but only clients may be
// transferred; serializing a live store fails with a protocol error.
type ModelStore interface {
	ModelClient
	// Init prepares the store's resources. Runs once per 0→1 activation.
	Init() error
	// PutModel stores a model and returns a portable key for it.
	PutModel(model any) (any, error)
	// Client returns a fresh lightweight client for this store.
	Client() ModelClient
	// Shutdown releases every resource the store owns. Runs once per 1→0
	// deactivation.
	Shutdown() error

	actRecord() *actRecord
}

// actRecord counts how many nested scopes currently hold a store open.
type actRecord struct{ count int }

// storeBase carries the activation record; every store embeds it, which also
// gives every store the same gob refusal.
type storeBase struct{ act actRecord }

func (b *storeBase) actRecord() *actRecord { return &b.act }

// GobEncode refuses: a live store holds process-local state that means
// nothing in another process. Transfer a Client instead.
func (b *storeBase) GobEncode() ([]byte, error) {
	return nil, ErrProtocol("stores cannot be serialized; transfer a client instead")
}

// GobDecode refuses for the same reason as GobEncode.
func (b *storeBase) GobDecode([]byte) error {
	return ErrProtocol("stores cannot be deserialized; transfer a client instead")
}

// Activation is the scope guard returned by Enter. Exit must be called
// exactly once, in LIFO order with respect to other activations on the same
// context.
type Activation struct {
	ctx   *Context
	store ModelStore
	done  bool
}

// Enter activates store on ctx: the activation count goes up, the store is
// pushed on the context's active stack, and the 0→1 transition runs Init.
// Nested entries of an already-active store are cheap and share its
// resources.
func Enter(ctx *Context, store ModelStore) (*Activation, error) {
	rec := store.actRecord()
	if rec.count == 0 {
		if err := store.Init(); err != nil {
			return nil, err
		}
	}
	rec.count++
	ctx.push(store)
	return &Activation{ctx: ctx, store: store}, nil
}

// Exit releases the activation. The 1→0 transition runs Shutdown and returns
// its error. Exiting out of LIFO order or twice is a fatal protocol
// violation and panics.
func (a *Activation) Exit() error {
	if a.done {
		panic("sharing: store scope exited twice")
	}
	a.done = true
	a.ctx.pop(a.store)
	rec := a.store.actRecord()
	rec.count--
	if rec.count == 0 {
		return a.store.Shutdown()
	}
	return nil
}

// SelectStore returns the best store for the caller. Priority order: the
// context's innermost active store when reuse is set (nested code shares the
// outer scope's store instead of creating a redundant one), a no-op store
// for purely in-process work, shared memory when the platform supports it,
// and the file-based fallback otherwise.
func SelectStore(ctx *Context, reuse, inProcess bool) ModelStore {
	if reuse {
		if s := ctx.ActiveStore(); s != nil {
			return s
		}
	}
	if inProcess {
		return NewNoopStore()
	}
	if shm.Supported() {
		return NewSHMStore(ctx)
	}
	return NewFileStore(ctx)
}

// ClientFor returns a client able to resolve key in this process, for worker
// processes that receive a key without the store that made it.
func ClientFor(key any) (ModelClient, error) {
	switch key.(type) {
	case ShareKey:
		return &SHMClient{}, nil
	case FileKey:
		return &FileClient{}, nil
	default:
		return nil, ErrProtocol(fmt.Sprintf("no client can resolve key type %T", key))
	}
}
