package messaging

import (
	"context"
	"fmt"

	"github.com/sokos-io/nft-indexer/internal/domain"
)

const SUBJECT_PREFIX = "events"

// Publisher defines the interface for publishing events to message queue
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEvent publishes a decoded event. Publishing the same event twice
	// within the broker's duplicate window stores it once.
	PublishEvent(ctx context.Context, event *domain.Event) error
	// Close closes the connection
	Close()
}

// Subject returns the subject an event is published on: events.<chainId>.<type>
func Subject(event *domain.Event) string {
	return fmt.Sprintf("%s.%d.%s", SUBJECT_PREFIX, event.ChainID, event.Type)
}

// SubjectFilter matches every event of every chain
func SubjectFilter() string {
	return SUBJECT_PREFIX + ".>"
}
