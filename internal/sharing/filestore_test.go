package sharing

import (
	"os"
	"path/filepath"
	"testing"

	"modelshare/pkg/types"
)

func enterFile(t *testing.T) (*FileStore, *Activation) {
	t.Helper()
	ctx := NewContext()
	store := NewFileStoreAt(ctx, filepath.Join(t.TempDir(), "store"))
	act, err := Enter(ctx, store)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	return store, act
}

func TestFileRoundTripInline(t *testing.T) {
	store, act := enterFile(t)

	key, err := store.PutModel([]int{4, 5, 6})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	fk, ok := key.(FileKey)
	if !ok {
		t.Fatalf("expected FileKey, got %T", key)
	}
	if _, err := os.Stat(fk.Path); err != nil {
		t.Fatalf("model file missing: %v", err)
	}

	got, err := store.GetModel(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	v := got.([]int)
	if len(v) != 3 || v[0] != 4 {
		t.Fatalf("round trip mismatch: %#v", v)
	}
	if err := act.Exit(); err != nil {
		t.Fatalf("exit: %v", err)
	}
}

func TestFileRoundTripExternalBuffers(t *testing.T) {
	store, act := enterFile(t)
	defer func() { _ = act.Exit() }()

	offsets := []float64{0.5, -0.25, 1.75}
	model, err := types.NewItemBias(2.0, []string{"a", "b", "c"}, offsets)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	key, err := store.PutModel(model)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Client().GetModel(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	bias := got.(*types.ItemBias)
	if bias.Score("b") != 2.0-0.25 {
		t.Fatalf("score mismatch: %v", bias.Score("b"))
	}
}

func TestFileClientCaches(t *testing.T) {
	store, act := enterFile(t)

	key, err := store.PutModel([]string{"x"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	client := store.Client().(*FileClient)
	first, err := client.GetModel(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// remove the backing file; the cache must still answer
	if err := os.Remove(key.(FileKey).Path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	second, err := client.GetModel(key)
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if &first.([]string)[0] != &second.([]string)[0] {
		t.Fatalf("cached get returned a different model")
	}

	_ = act.Exit()
}

func TestPutSerializedLoadsStoredFile(t *testing.T) {
	src, srcAct := enterFile(t)
	model, err := types.NewItemBias(1.5, []string{"a", "b"}, []float64{0.5, -0.5})
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	key, err := src.PutModel(model)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	// share the persisted file through a second store without refitting
	dest := NewNoopStore()
	destAct, err := Enter(NewContext(), dest)
	if err != nil {
		t.Fatalf("enter dest: %v", err)
	}
	destKey, err := PutSerialized(dest, key.(FileKey).Path)
	if err != nil {
		t.Fatalf("put serialized: %v", err)
	}
	got, err := dest.GetModel(destKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	bias := got.(*types.ItemBias)
	if bias.Score("a") != 2.0 || bias.Score("b") != 1.0 {
		t.Fatalf("loaded model scores wrong: %v, %v", bias.Score("a"), bias.Score("b"))
	}

	if err := destAct.Exit(); err != nil {
		t.Fatalf("exit dest: %v", err)
	}
	if err := srcAct.Exit(); err != nil {
		t.Fatalf("exit src: %v", err)
	}
}

func TestPutSerializedMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.model")
	if _, err := PutSerialized(NewNoopStore(), path); !IsNotFound(err) {
		t.Fatalf("expected not-found for a missing file, got %v", err)
	}
}

func TestFileShutdownRemovesEverything(t *testing.T) {
	store, act := enterFile(t)
	key, err := store.PutModel([]int{7})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	dir := store.dir
	if err := act.Exit(); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("store directory should be gone, stat err=%v", err)
	}
	if _, err := (&FileClient{}).GetModel(key); !IsNotFound(err) {
		t.Fatalf("expected not-found after shutdown, got %v", err)
	}
}
