package pipeline

import "errors"

// Pipeline failure taxonomy. Handlers map these onto HTTP responses.
var (
	// ErrAlreadyClaimed means another poller pass already moved the call
	// out of scheduled; the initiator skips without treating it as failure.
	ErrAlreadyClaimed = errors.New("call already claimed for initiation")

	// ErrProviderFailure means the telephony API rejected the outbound
	// call request. The row is left in initiating; the reconciliation
	// sweep fails it later.
	ErrProviderFailure = errors.New("telephony provider request failed")

	// ErrDownloadFailure means the recording artifact could not be
	// fetched from the provider.
	ErrDownloadFailure = errors.New("recording download failed")

	// ErrUploadFailure means the recording artifact could not be written
	// to object storage.
	ErrUploadFailure = errors.New("recording upload failed")
)
