package domain

import "errors"

var (
	// ErrDataIntegrity marks failures caused by a corrupt or out-of-order event feed.
	// Events failing with it must not be retried.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrNftNotFound is returned when a non-mint transfer references a token that was never minted
	ErrNftNotFound = errors.New("nft not found")

	// ErrUnknownEventType is returned when no handler is registered for an event type
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrInvalidEvent is returned when an event payload cannot be decoded
	ErrInvalidEvent = errors.New("invalid event")

	// ErrUnsupportedChain is returned when a chain id has no configured endpoint
	ErrUnsupportedChain = errors.New("unsupported chain")

	// ErrMetadataNotFound is returned by a metadata source that has no record for a token
	ErrMetadataNotFound = errors.New("metadata not found")
)

// IsPermanent reports whether err will fail the same way on every redelivery
func IsPermanent(err error) bool {
	return errors.Is(err, ErrDataIntegrity) ||
		errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrUnknownEventType)
}
