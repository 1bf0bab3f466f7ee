// Package chat implements party-scoped broadcast with in-memory history.
// Each party's room is owned by one goroutine, so delivery order always
// matches acceptance order.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/party"
	"github.com/weiawesome/sync-party/pkg/log"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("chat channel closed")

const (
	DefaultMaxMessageLength = 2000
	outboxSize              = 1024
)

// Conn is a subscribed client connection.
type Conn interface {
	ID() string
	// Send queues a frame without blocking. It returns false when the
	// connection cannot keep up.
	Send(data []byte) bool
	// Close tears the connection down.
	Close()
}

// PartyLookup loads a party by id.
type PartyLookup interface {
	Lookup(ctx context.Context, id string) (*domain.Party, error)
}

// Forwarder carries accepted messages to other instances.
type Forwarder interface {
	Forward(ctx context.Context, msg domain.ChatMessage) error
}

// Config tunes the channel.
type Config struct {
	// HistoryLimit bounds each party's history. Zero keeps everything.
	HistoryLimit     int `mapstructure:"history_limit"`
	MaxMessageLength int `mapstructure:"max_message_length"`
}

// Channel routes chat messages to the connections subscribed to a party.
type Channel struct {
	parties PartyLookup
	cfg     Config
	now     func() time.Time

	mu     sync.Mutex
	rooms  map[string]*room
	joined map[string]map[string]struct{} // conn id -> party ids
	closed bool

	forwarder Forwarder
	outbox    chan domain.ChatMessage
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewChannel creates a channel.
func NewChannel(parties PartyLookup, cfg Config) *Channel {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultMaxMessageLength
	}
	return &Channel{
		parties: parties,
		cfg:     cfg,
		now:     time.Now,
		rooms:   make(map[string]*room),
		joined:  make(map[string]map[string]struct{}),
		stop:    make(chan struct{}),
	}
}

// SetForwarder enables cross-instance fan-out. It must be called before
// the first Publish.
func (c *Channel) SetForwarder(f Forwarder) {
	c.forwarder = f
	c.outbox = make(chan domain.ChatMessage, outboxSize)
	c.wg.Add(1)
	go c.forwardLoop()
}

// Subscribe joins conn to the party's broadcast group. Members, the owner
// and admins may subscribe. History is not replayed.
func (c *Channel) Subscribe(ctx context.Context, conn Conn, p *domain.Principal, partyID string) error {
	if p == nil {
		return domain.ErrNotAuthenticated
	}
	pt, err := c.parties.Lookup(ctx, partyID)
	if err != nil {
		return err
	}
	if err := party.CanView(p, pt); err != nil {
		return err
	}

	r, err := c.room(partyID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	parties, ok := c.joined[conn.ID()]
	if !ok {
		parties = make(map[string]struct{})
		c.joined[conn.ID()] = parties
	}
	parties[partyID] = struct{}{}
	c.mu.Unlock()

	return r.do(func() {
		r.subs[conn.ID()] = conn
	})
}

// Unsubscribe removes conn from the party's group.
func (c *Channel) Unsubscribe(conn Conn, partyID string) {
	c.mu.Lock()
	if parties, ok := c.joined[conn.ID()]; ok {
		delete(parties, partyID)
		if len(parties) == 0 {
			delete(c.joined, conn.ID())
		}
	}
	r := c.rooms[partyID]
	c.mu.Unlock()

	if r != nil {
		_ = r.do(func() {
			delete(r.subs, conn.ID())
		})
	}
}

// Disconnect removes conn from every group it joined.
func (c *Channel) Disconnect(conn Conn) {
	c.mu.Lock()
	parties := c.joined[conn.ID()]
	delete(c.joined, conn.ID())
	rooms := make([]*room, 0, len(parties))
	for id := range parties {
		if r := c.rooms[id]; r != nil {
			rooms = append(rooms, r)
		}
	}
	c.mu.Unlock()

	for _, r := range rooms {
		r := r
		_ = r.do(func() {
			delete(r.subs, conn.ID())
		})
	}
}

// Publish accepts a message from sender, appends it to the party history
// and sends it to every connection subscribed at that moment.
func (c *Channel) Publish(ctx context.Context, message string, sender *domain.Principal, partyID string) (*domain.ChatMessage, error) {
	if sender == nil {
		return nil, domain.ErrNotAuthenticated
	}

	pt, err := c.parties.Lookup(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if err := party.CanParticipate(sender, pt); err != nil {
		return nil, err
	}

	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrValidation)
	}
	if utf8.RuneCountInString(message) > c.cfg.MaxMessageLength {
		return nil, fmt.Errorf("%w: message longer than %d characters", domain.ErrValidation, c.cfg.MaxMessageLength)
	}

	r, err := c.room(partyID)
	if err != nil {
		return nil, err
	}

	msg := domain.ChatMessage{
		ID:        ulid.Make().String(),
		UserID:    sender.ID,
		PartyID:   partyID,
		UserName:  sender.Username,
		Message:   message,
		Timestamp: c.now().UTC(),
	}

	err = r.do(func() {
		msg = r.accept(c, msg)
		c.enqueueForward(msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// History returns a snapshot of the party's messages in broadcast order.
func (c *Channel) History(partyID string) []domain.ChatMessage {
	c.mu.Lock()
	r := c.rooms[partyID]
	c.mu.Unlock()
	if r == nil {
		return nil
	}

	var out []domain.ChatMessage
	_ = r.do(func() {
		out = make([]domain.ChatMessage, len(r.history))
		copy(out, r.history)
	})
	return out
}

// Subscribers returns how many connections are in the party's group.
func (c *Channel) Subscribers(partyID string) int {
	c.mu.Lock()
	r := c.rooms[partyID]
	c.mu.Unlock()
	if r == nil {
		return 0
	}

	n := 0
	_ = r.do(func() {
		n = len(r.subs)
	})
	return n
}

// deliverRemote appends a message accepted by another instance and fans it
// out locally. It is never forwarded again.
func (c *Channel) deliverRemote(msg domain.ChatMessage) error {
	r, err := c.room(msg.PartyID)
	if err != nil {
		return err
	}
	return r.do(func() {
		r.accept(c, msg)
	})
}

// Close stops every room. Pending calls return ErrClosed.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	rooms := c.rooms
	c.mu.Unlock()

	for _, r := range rooms {
		close(r.stop)
	}
	close(c.stop)
	c.wg.Wait()
}

func (c *Channel) room(partyID string) (*room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	r, ok := c.rooms[partyID]
	if !ok {
		r = newRoom(partyID)
		c.rooms[partyID] = r
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			r.run()
		}()
	}
	return r, nil
}

// forget drops a connection's membership record after a room evicted it.
func (c *Channel) forget(connID, partyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if parties, ok := c.joined[connID]; ok {
		delete(parties, partyID)
		if len(parties) == 0 {
			delete(c.joined, connID)
		}
	}
}

func (c *Channel) enqueueForward(msg domain.ChatMessage) {
	if c.outbox == nil {
		return
	}
	select {
	case c.outbox <- msg:
	default:
		l := log.L()
		l.Warn().Str(log.FieldPartyID, msg.PartyID).Str("message_id", msg.ID).Msg("relay outbox full, message not forwarded")
	}
}

// forwardLoop drains the outbox on one goroutine so remote instances see
// each party's messages in acceptance order.
func (c *Channel) forwardLoop() {
	defer c.wg.Done()
	for {
		select {
		case msg := <-c.outbox:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.forwarder.Forward(ctx, msg); err != nil {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldPartyID, msg.PartyID).Msg("failed to forward chat message")
			}
			cancel()
		case <-c.stop:
			return
		}
	}
}

// room is the state of one party, touched only by its run goroutine.
type room struct {
	partyID string
	ops     chan func()
	stop    chan struct{}

	subs    map[string]Conn
	history []domain.ChatMessage
	seq     uint64
}

func newRoom(partyID string) *room {
	return &room{
		partyID: partyID,
		ops:     make(chan func()),
		stop:    make(chan struct{}),
		subs:    make(map[string]Conn),
	}
}

func (r *room) run() {
	for {
		select {
		case op := <-r.ops:
			op()
		case <-r.stop:
			return
		}
	}
}

// do runs fn on the room goroutine and waits for it. ops is unbuffered,
// so an accepted op always completes.
func (r *room) do(fn func()) error {
	done := make(chan struct{})
	select {
	case r.ops <- func() { fn(); close(done) }:
	case <-r.stop:
		return ErrClosed
	}
	<-done
	return nil
}

// accept assigns the arrival order, records and broadcasts msg.
func (r *room) accept(c *Channel, msg domain.ChatMessage) domain.ChatMessage {
	r.seq++
	msg.ArrivalOrder = r.seq

	r.history = append(r.history, msg)
	if limit := c.cfg.HistoryLimit; limit > 0 && len(r.history) > limit {
		n := copy(r.history, r.history[len(r.history)-limit:])
		r.history = r.history[:n]
	}

	data, err := json.Marshal(domain.NewChatMessageOut(msg))
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldPartyID, r.partyID).Msg("failed to encode chat message")
		return msg
	}

	for id, conn := range r.subs {
		if conn.Send(data) {
			continue
		}
		delete(r.subs, id)
		c.forget(id, r.partyID)
		conn.Close()

		l := log.L()
		l.Warn().Str(log.FieldConnID, id).Str(log.FieldPartyID, r.partyID).Msg("dropped slow chat connection")
	}
	return msg
}
