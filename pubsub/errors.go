package pubsub

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMissingSubscription matches every MissingSubscriptionError.
var ErrMissingSubscription = errors.New("missing subscription")

// MissingSubscriptionError is returned to a publisher that emits for a
// subscription the subscriber no longer knows about.
type MissingSubscriptionError struct {
	ID string
}

func (err *MissingSubscriptionError) Error() string {
	return fmt.Sprintf("missing subscription %s", err.ID)
}

// Is makes errors.Is(err, ErrMissingSubscription) hold.
func (err *MissingSubscriptionError) Is(target error) bool {
	return target == ErrMissingSubscription
}

// NoPublisherError is returned to a subscriber that names a function with no
// registered publisher.
type NoPublisherError struct {
	Name string
}

func (err *NoPublisherError) Error() string {
	return fmt.Sprintf("no publisher for %s", err.Name)
}

// DuplicateSubscriptionError is returned when a subscription ID is reused
// while its publication is still active.
type DuplicateSubscriptionError struct {
	ID string
}

func (err *DuplicateSubscriptionError) Error() string {
	return fmt.Sprintf("duplicate subscription %s", err.ID)
}
