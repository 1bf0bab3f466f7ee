package chat

import (
	"context"
	"fmt"

	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/pkg/log"
	"github.com/weiawesome/sync-party/pkg/pubsub"
)

// Relay mirrors accepted messages between instances over the bus.
type Relay struct {
	bus    pubsub.PubSub
	origin string
}

// NewRelay creates a relay. origin must be unique per instance.
func NewRelay(bus pubsub.PubSub, origin string) *Relay {
	return &Relay{bus: bus, origin: origin}
}

// Forward publishes msg on its party channel.
func (r *Relay) Forward(ctx context.Context, msg domain.ChatMessage) error {
	event, err := pubsub.NewEvent(pubsub.EventChatMessage, msg.PartyID, r.origin, msg)
	if err != nil {
		return fmt.Errorf("encode chat event: %w", err)
	}
	return r.bus.Publish(ctx, pubsub.PartyChatChannel(msg.PartyID), event)
}

// Attach makes ch forward through the relay and delivers messages from
// other instances into it until ctx ends.
func (r *Relay) Attach(ctx context.Context, ch *Channel) error {
	events, err := r.bus.SubscribePattern(ctx, pubsub.PatternPartyChat)
	if err != nil {
		return fmt.Errorf("subscribe to chat channels: %w", err)
	}
	ch.SetForwarder(r)

	go r.consume(ch, events)

	l := log.L()
	l.Info().Str("origin", r.origin).Msg("chat relay attached")
	return nil
}

func (r *Relay) consume(ch *Channel, events <-chan *pubsub.Event) {
	l := log.L()
	for ev := range events {
		if ev.Origin == r.origin || ev.Type != pubsub.EventChatMessage {
			continue
		}

		var msg domain.ChatMessage
		if err := ev.UnmarshalPayload(&msg); err != nil {
			l.Warn().Err(err).Str(log.FieldPartyID, ev.PartyID).Msg("dropping malformed chat event")
			continue
		}
		if msg.PartyID == "" {
			msg.PartyID = ev.PartyID
		}

		if err := ch.deliverRemote(msg); err != nil {
			l.Debug().Err(err).Msg("chat relay stopped")
			return
		}
	}
}
