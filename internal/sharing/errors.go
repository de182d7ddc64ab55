package sharing

import "errors"

// configurationError signals that a requested store cannot run on this
// platform or with this configuration.
type configurationError struct{ msg string }

func (e configurationError) Error() string { return e.msg }

// ErrConfiguration constructs a configurationError.
func ErrConfiguration(msg string) error { return configurationError{msg: msg} }

// IsConfiguration reports whether err indicates an unusable configuration.
func IsConfiguration(err error) bool {
	var t configurationError
	return errors.As(err, &t)
}

// serializationError signals that a model graph could not be encoded.
type serializationError struct {
	msg string
	err error
}

func (e serializationError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e serializationError) Unwrap() error { return e.err }

// ErrSerialization constructs a serializationError wrapping err (may be nil).
func ErrSerialization(msg string, err error) error { return serializationError{msg: msg, err: err} }

// IsSerialization reports whether err indicates an encode failure.
func IsSerialization(err error) bool {
	var t serializationError
	return errors.As(err, &t)
}

// resourceError signals an OS resource failure, e.g. segment allocation.
type resourceError struct {
	msg string
	err error
}

func (e resourceError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e resourceError) Unwrap() error { return e.err }

// ErrResource constructs a resourceError wrapping err (may be nil).
func ErrResource(msg string, err error) error { return resourceError{msg: msg, err: err} }

// IsResource reports whether err indicates an OS resource failure.
func IsResource(err error) bool {
	var t resourceError
	return errors.As(err, &t)
}

// notFoundError signals that a key references storage that no longer exists,
// usually because the owning store already shut down.
type notFoundError struct {
	msg string
	err error
}

func (e notFoundError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e notFoundError) Unwrap() error { return e.err }

// ErrNotFound constructs a notFoundError wrapping err (may be nil).
func ErrNotFound(msg string, err error) error { return notFoundError{msg: msg, err: err} }

// IsNotFound reports whether err indicates missing stored data.
func IsNotFound(err error) bool {
	var t notFoundError
	return errors.As(err, &t)
}

// deserializationError signals a header/buffer mismatch during decode.
type deserializationError struct {
	msg string
	err error
}

func (e deserializationError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e deserializationError) Unwrap() error { return e.err }

// ErrDeserialization constructs a deserializationError wrapping err (may be nil).
func ErrDeserialization(msg string, err error) error {
	return deserializationError{msg: msg, err: err}
}

// IsDeserialization reports whether err indicates a decode failure.
func IsDeserialization(err error) bool {
	var t deserializationError
	return errors.As(err, &t)
}

// protocolError signals misuse of the store protocol, e.g. trying to
// serialize a live store.
type protocolError struct{ msg string }

func (e protocolError) Error() string { return e.msg }

// ErrProtocol constructs a protocolError.
func ErrProtocol(msg string) error { return protocolError{msg: msg} }

// IsProtocol reports whether err indicates store protocol misuse.
func IsProtocol(err error) bool {
	var t protocolError
	return errors.As(err, &t)
}
