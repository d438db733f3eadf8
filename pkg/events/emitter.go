// Package events publishes contact lifecycle events
package events

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/cockroachdb/errors"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

var _ identity.EventSink = (*Emitter)(nil)

// Publisher is satisfied by *kafka.Producer
type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Emitter turns identity events into Kafka messages keyed by primary contact
// id, so every event for a cluster lands on the same partition.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

func (e *Emitter) Publish(ctx context.Context, evts []identity.Event) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.Publish")
	defer span.End()

	if len(evts) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(evts))
	for _, evt := range evts {
		data, err := json.Marshal(evt)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal %s event", evt.Type)
		}
		msgs = append(msgs, kafka.Message{
			Key:   strconv.FormatInt(evt.PrimaryID, 10),
			Value: data,
			Headers: map[string]string{
				"event_type":     string(evt.Type),
				"schema_version": SchemaVersion,
			},
		})
	}

	if err := e.publisher.Publish(ctx, msgs...); err != nil {
		return errors.Wrap(err, "failed to publish contact events")
	}

	e.logger.WithContext(ctx).WithField("event_count", len(msgs)).Debug("emitted contact events")
	return nil
}
