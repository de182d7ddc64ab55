package sharing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"modelshare/internal/codec"
)

// File layout: magic, version, framed header, then the extracted buffers in
// order, each length-prefixed. The same positional contract as the
// shared-memory store, just flattened into one file.
const (
	fileMagic   = "MSHF"
	fileVersion = uint16(1)
)

// FileKey identifies a model stored by a FileStore.
type FileKey struct {
	ID   uuid.UUID
	Path string
}

func (k FileKey) String() string {
	return fmt.Sprintf("FileKey(%s: %s)", k.ID, k.Path)
}

// FileStore is the universal fallback store: each model is written to its
// own file under a per-store directory removed on shutdown. Slower than
// shared memory, works everywhere.
type FileStore struct {
	storeBase
	ctx   *Context
	dir   string
	pin   bool // dir was supplied by the caller; still removed on shutdown
	local FileClient
}

// NewFileStore returns a file store that will create its own temp directory
// on first activation.
func NewFileStore(ctx *Context) *FileStore { return &FileStore{ctx: ctx} }

// NewFileStoreAt returns a file store writing under dir.
func NewFileStoreAt(ctx *Context, dir string) *FileStore {
	return &FileStore{ctx: ctx, dir: dir, pin: true}
}

func (s *FileStore) Init() error {
	if s.pin {
		if err := os.MkdirAll(s.dir, 0o700); err != nil {
			return ErrResource("create model store directory", err)
		}
		return nil
	}
	dir, err := os.MkdirTemp("", "modelshare-*")
	if err != nil {
		return ErrResource("create model store directory", err)
	}
	s.dir = dir
	return nil
}

// PutModel encodes the model under a Share-mode scope and writes the header
// plus extracted buffers into one file. A failed put removes the partial
// file.
func (s *FileStore) PutModel(model any) (any, error) {
	id := uuid.New()
	path := filepath.Join(s.dir, id.String()+".model")

	var bufs [][]byte
	release := s.ctx.EnterShare()
	header, err := codec.Encode(model, func(buf []byte) { bufs = append(bufs, buf) })
	release()
	if err != nil {
		return nil, ErrSerialization("encode model for file store", err)
	}

	if err := writeModelFile(path, header, bufs); err != nil {
		_ = os.Remove(path)
		return nil, ErrResource("write model file", err)
	}
	key := FileKey{ID: id, Path: path}
	zlog.Info().Stringer("key", key).Int("buffers", len(bufs)).Msg("stored model to file")
	return key, nil
}

// PutSerialized loads an already-encoded model file and puts the model into
// store, so a model persisted by an earlier run can be shared without
// refitting. The file uses the framing the file-based store writes.
func PutSerialized(store ModelStore, path string) (any, error) {
	header, bufs, err := readModelFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound(fmt.Sprintf("model file %s does not exist", path), err)
		}
		return nil, ErrDeserialization("read model file", err)
	}
	model, err := codec.Decode(header, bufs)
	if err != nil {
		return nil, ErrDeserialization("decode stored model", err)
	}
	return store.PutModel(model)
}

// GetModel resolves locally through the store's own client.
func (s *FileStore) GetModel(key any) (any, error) { return s.local.GetModel(key) }

// Client returns a fresh client with its own cache.
func (s *FileStore) Client() ModelClient { return &FileClient{} }

// Shutdown removes the store's directory and every model file in it.
func (s *FileStore) Shutdown() error {
	s.local.evict()
	if s.dir == "" {
		return nil
	}
	if err := os.RemoveAll(s.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ErrResource("remove model store directory", err)
	}
	return nil
}

func (s *FileStore) String() string { return fmt.Sprintf("FileStore(%s)", s.dir) }

// FileClient resolves FileKeys, caching the most recently loaded model.
type FileClient struct {
	haveLast  bool
	lastID    uuid.UUID
	lastModel any
}

func (c *FileClient) GetModel(key any) (any, error) {
	fk, ok := key.(FileKey)
	if !ok {
		return nil, ErrDeserialization(fmt.Sprintf("file client got key type %T", key), nil)
	}
	if c.haveLast && c.lastID == fk.ID {
		return c.lastModel, nil
	}
	header, bufs, err := readModelFile(fk.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound(fmt.Sprintf("model file %s is gone; did the owning store shut down?", fk.Path), err)
		}
		return nil, ErrDeserialization("read model file", err)
	}
	model, err := codec.Decode(header, bufs)
	if err != nil {
		return nil, ErrDeserialization("decode stored model", err)
	}
	c.haveLast, c.lastID, c.lastModel = true, fk.ID, model
	return model, nil
}

func (c *FileClient) evict() {
	c.haveLast = false
	c.lastModel = nil
}

// Close drops the cached model.
func (c *FileClient) Close() error {
	c.evict()
	return nil
}

// GobEncode makes the client transferable; it carries no state worth moving.
func (c *FileClient) GobEncode() ([]byte, error) { return []byte{}, nil }

// GobDecode yields a client with an empty cache.
func (c *FileClient) GobDecode([]byte) error { return nil }

func writeModelFile(path string, header []byte, bufs [][]byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write([]byte(fileMagic)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, fileVersion); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, uint64(len(header))); err != nil {
		return err
	}
	if _, err := f.Write(header); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, uint32(len(bufs))); err != nil {
		return err
	}
	for _, b := range bufs {
		if err := binary.Write(f, binary.BigEndian, uint64(len(b))); err != nil {
			return err
		}
		if _, err := f.Write(b); err != nil {
			return err
		}
	}
	return f.Sync()
}

func readModelFile(path string) (header []byte, bufs [][]byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, nil, err
	}
	if string(magic) != fileMagic {
		return nil, nil, fmt.Errorf("bad model file magic %q", magic)
	}
	var version uint16
	if err := binary.Read(f, binary.BigEndian, &version); err != nil {
		return nil, nil, err
	}
	if version != fileVersion {
		return nil, nil, fmt.Errorf("unsupported model file version %d", version)
	}
	var headerLen uint64
	if err := binary.Read(f, binary.BigEndian, &headerLen); err != nil {
		return nil, nil, err
	}
	header = make([]byte, headerLen)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, nil, err
	}
	var n uint32
	if err := binary.Read(f, binary.BigEndian, &n); err != nil {
		return nil, nil, err
	}
	bufs = make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		var bl uint64
		if err := binary.Read(f, binary.BigEndian, &bl); err != nil {
			return nil, nil, err
		}
		b := make([]byte, bl)
		if _, err := io.ReadFull(f, b); err != nil {
			return nil, nil, err
		}
		bufs = append(bufs, b)
	}
	return header, bufs, nil
}
