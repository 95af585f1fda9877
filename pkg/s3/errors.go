package s3

import "errors"

// Error classes surfaced by the signing core and the client engine.
// Transport failures from the underlying HTTP client are propagated
// unchanged and never wrapped in one of these.
var (
	// ErrConfiguration reports a missing or malformed credential or
	// endpoint field. Fatal, no retry.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedOperation reports an invalid HTTP method or an
	// operation the engine does not support, such as signing a
	// file-backed payload.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrProtocol reports a service response missing an expected field,
	// e.g. no UploadId in an initiate-multipart response.
	ErrProtocol = errors.New("protocol error")

	// ErrValidation reports inconsistent caller input, e.g. a key name
	// without a bucket name.
	ErrValidation = errors.New("validation error")
)
