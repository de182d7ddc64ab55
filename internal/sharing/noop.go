package sharing

// NoopStore is the identity store: models are their own keys and no bytes
// move anywhere. Valid only for single-process execution. Callers must never
// mutate a key they got from PutModel — it is the live model, not a copy.
type NoopStore struct{ storeBase }

// NewNoopStore returns a no-op store.
func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) Init() error { return nil }

func (s *NoopStore) Shutdown() error { return nil }

func (s *NoopStore) PutModel(model any) (any, error) { return model, nil }

func (s *NoopStore) GetModel(key any) (any, error) { return key, nil }

// Client returns the store itself; with a single process there is nothing
// lighter to hand out.
func (s *NoopStore) Client() ModelClient { return s }

func (s *NoopStore) String() string { return "NoopStore" }
