package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
)

// IntentStore records intents idempotently.
type IntentStore interface {
	Emit(ctx context.Context, in domain.Intent) (bool, error)
	Retract(ctx context.Context, in domain.Intent) error
}

// Publisher forwards an intent to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, in domain.Intent) error
}

// IntentSink records an intent and, when it is new, publishes it. If the
// publish fails the record is retracted so the next job run emits it again.
type IntentSink struct {
	store IntentStore
	pub   Publisher
	log   *logger.Logger
}

// NewIntentSink returns a sink. pub may be nil to only record intents.
func NewIntentSink(store IntentStore, pub Publisher) *IntentSink {
	return &IntentSink{store: store, pub: pub, log: logger.With("component", "intents")}
}

func (s *IntentSink) Emit(ctx context.Context, in domain.Intent) (bool, error) {
	created, err := s.store.Emit(ctx, in)
	if err != nil || !created || s.pub == nil {
		return created, err
	}

	if err := s.pub.Publish(ctx, in); err != nil {
		if rerr := s.store.Retract(context.WithoutCancel(ctx), in); rerr != nil {
			s.log.Error("retract after failed publish", "kind", in.Kind, "profile_id", in.ProfileID, "error", rerr)
			err = errors.Join(err, rerr)
		}
		return false, fmt.Errorf("publish %s intent for %s: %w", in.Kind, in.ProfileID, err)
	}
	return true, nil
}
