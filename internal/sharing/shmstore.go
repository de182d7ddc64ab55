package sharing

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"

	"github.com/google/uuid"

	"modelshare/internal/codec"
	"modelshare/internal/shm"
)

// ShareKey identifies a model stored in shared memory. It carries the model
// id, the encoded structural header, and the ordered list of externalized
// buffers — no OS handles — so it can travel to any process over any channel.
type ShareKey struct {
	ID      uuid.UUID
	Header  []byte
	Buffers []BufferDescriptor
}

// BufferDescriptor names one externalized buffer. The OS may pad the segment
// past Len; only the first Len bytes belong to the model. Descriptor order
// within a key equals extraction order and is load-bearing.
type BufferDescriptor struct {
	Segment string
	Len     int
}

func (k ShareKey) String() string {
	return fmt.Sprintf("ShareKey(%s: %d header bytes, %d buffers)", k.ID, len(k.Header), len(k.Buffers))
}

func init() {
	gob.Register(ShareKey{})
	gob.Register(FileKey{})
}

// SHMClient resolves ShareKeys by mapping the named segments. The most
// recently resolved model stays cached, so a worker loop hitting the same
// key over and over maps each segment once.
type SHMClient struct {
	haveLast  bool
	lastID    uuid.UUID
	lastModel any
	lastSegs  []*shm.Segment
}

// GetModel maps the key's segments in descriptor order, decodes the header
// against views trimmed to each descriptor's logical length, and caches the
// result.
func (c *SHMClient) GetModel(key any) (any, error) {
	sk, ok := key.(ShareKey)
	if !ok {
		return nil, ErrDeserialization(fmt.Sprintf("shm client got key type %T", key), nil)
	}
	if c.haveLast && c.lastID == sk.ID {
		zlog.Debug().Stringer("key", sk).Msg("reusing cached model")
		return c.lastModel, nil
	}

	views := make([][]byte, 0, len(sk.Buffers))
	segs := make([]*shm.Segment, 0, len(sk.Buffers))
	closeAll := func() {
		for _, s := range segs {
			_ = s.Close()
		}
	}
	for _, bd := range sk.Buffers {
		seg, err := shm.Open(bd.Segment)
		if err != nil {
			closeAll()
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrNotFound(fmt.Sprintf("segment %s is gone; did the owning store shut down?", bd.Segment), err)
			}
			return nil, ErrResource(fmt.Sprintf("open segment %s", bd.Segment), err)
		}
		if bd.Len > seg.AllocatedSize() {
			_ = seg.Close()
			closeAll()
			return nil, ErrDeserialization(fmt.Sprintf("segment %s holds %d bytes, key claims %d",
				bd.Segment, seg.AllocatedSize(), bd.Len), nil)
		}
		zlog.Debug().Str("segment", bd.Segment).Int("len", bd.Len).
			Int("allocated", seg.AllocatedSize()).Msg("mapped segment")
		views = append(views, seg.Bytes()[:bd.Len])
		segs = append(segs, seg)
	}

	model, err := codec.Decode(sk.Header, views)
	if err != nil {
		closeAll()
		return nil, ErrDeserialization("decode shared model", err)
	}

	c.evict()
	c.haveLast, c.lastID, c.lastModel, c.lastSegs = true, sk.ID, model, segs
	zlog.Debug().Stringer("key", sk).Msg("loaded model from shared memory")
	return model, nil
}

func (c *SHMClient) evict() {
	for _, s := range c.lastSegs {
		_ = s.Close()
	}
	c.haveLast = false
	c.lastModel = nil
	c.lastSegs = nil
}

// Close releases the cached model's mapped segments.
func (c *SHMClient) Close() error {
	c.evict()
	return nil
}

// GobEncode makes the client transferable; it carries no state worth moving.
func (c *SHMClient) GobEncode() ([]byte, error) { return []byte{}, nil }

// GobDecode yields a client with an empty cache.
func (c *SHMClient) GobDecode([]byte) error { return nil }

// SHMStore shares models through named shared-memory segments. Each put
// externalizes the model's large buffers into fresh segments; the store owns
// every segment it allocates and unlinks them all on shutdown. One logical
// thread per store instance; concurrent entry needs external locking.
type SHMStore struct {
	storeBase
	ctx      *Context
	local    SHMClient
	segments map[uuid.UUID][]*shm.Segment
}

// NewSHMStore returns an unactivated shared-memory store bound to ctx.
func NewSHMStore(ctx *Context) *SHMStore { return &SHMStore{ctx: ctx} }

func (s *SHMStore) Init() error {
	if !shm.Supported() {
		return ErrConfiguration("shared-memory store is not supported on this platform")
	}
	s.segments = make(map[uuid.UUID][]*shm.Segment)
	return nil
}

// PutModel encodes the model under a Share-mode scope, copying each
// externalized buffer verbatim into a fresh segment sized to its byte
// length. A failed put rolls back every segment created for the call.
func (s *SHMStore) PutModel(model any) (any, error) {
	id := uuid.New()

	var (
		segs     []*shm.Segment
		descs    []BufferDescriptor
		allocErr error
	)
	extract := func(buf []byte) {
		if allocErr != nil {
			return
		}
		seg, err := shm.Create(len(buf))
		if err != nil {
			allocErr = err
			return
		}
		copy(seg.Bytes(), buf)
		segs = append(segs, seg)
		descs = append(descs, BufferDescriptor{Segment: seg.Name(), Len: len(buf)})
	}

	release := s.ctx.EnterShare()
	header, err := codec.Encode(model, extract)
	release()

	if err != nil || allocErr != nil {
		for _, seg := range segs {
			_ = seg.Close()
			_ = seg.Unlink()
		}
		if allocErr != nil {
			return nil, ErrResource("allocate shared segment", allocErr)
		}
		return nil, ErrSerialization("encode model for sharing", err)
	}

	s.segments[id] = segs
	key := ShareKey{ID: id, Header: header, Buffers: descs}
	zlog.Info().Stringer("key", key).Int("segments", len(segs)).Msg("shared model")
	return key, nil
}

// GetModel resolves locally through the store's own client.
func (s *SHMStore) GetModel(key any) (any, error) { return s.local.GetModel(key) }

// Client returns a fresh client with its own cache, cheap to transfer.
func (s *SHMStore) Client() ModelClient { return &SHMClient{} }

// Shutdown closes and unlinks every segment this store created. A segment a
// cooperating peer already unlinked is tolerated; any other failure is
// reported through the first error encountered.
func (s *SHMStore) Shutdown() error {
	_ = s.local.Close()
	var firstErr error
	for id, segs := range s.segments {
		for _, seg := range segs {
			if err := seg.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			if err := seg.Unlink(); err != nil && !errors.Is(err, fs.ErrNotExist) && firstErr == nil {
				firstErr = err
			}
		}
		delete(s.segments, id)
	}
	zlog.Debug().Msg("shared-memory store shut down")
	return firstErr
}

func (s *SHMStore) String() string { return "SHMStore" }
