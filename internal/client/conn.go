package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/pkg/log"
)

const (
	writeWait = 10 * time.Second
	sendQueue = 64
)

var (
	// ErrConnClosed is returned when sending on a finished connection.
	ErrConnClosed = errors.New("chat connection closed")
	// ErrSendQueueFull is returned when the server stops reading.
	ErrSendQueueFull = errors.New("chat send queue full")
)

// Frame is one decoded server frame. Chat is set for chat_message.
type Frame struct {
	Type    string
	PartyID string
	Code    string
	Detail  string
	Chat    *domain.ChatMessage
}

// ChatConn is the chat side of a server connection. Join, Leave and
// Publish queue a frame without blocking; frames reach the server in the
// order they were queued.
type ChatConn interface {
	Join(partyID string) error
	Leave(partyID string) error
	Publish(partyID, text string) error
	// Frames is closed when the connection ends; Err then says why.
	Frames() <-chan Frame
	Err() error
}

// Conn is a websocket chat connection. One goroutine owns all writes.
type Conn struct {
	ws     *websocket.Conn
	frames chan Frame

	out       chan any
	done      chan struct{}
	closeOnce sync.Once
	writerEnd chan struct{}

	errMu sync.Mutex
	err   error
}

// DialChat opens the chat websocket with the API's session cookie.
func (a *API) DialChat(ctx context.Context) (*Conn, error) {
	dialer := websocket.Dialer{
		Jar:              a.jar,
		HandshakeTimeout: 10 * time.Second,
	}
	ws, _, err := dialer.DialContext(ctx, a.chatURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial chat: %w", err)
	}

	return newConn(ws), nil
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:        ws,
		frames:    make(chan Frame, 64),
		out:       make(chan any, sendQueue),
		done:      make(chan struct{}),
		writerEnd: make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

func (c *Conn) Frames() <-chan Frame { return c.frames }

func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) Join(partyID string) error {
	return c.write(domain.PartyMessage{Type: domain.MsgTypeJoinParty, PartyID: partyID})
}

func (c *Conn) Leave(partyID string) error {
	return c.write(domain.PartyMessage{Type: domain.MsgTypeLeaveParty, PartyID: partyID})
}

func (c *Conn) Publish(partyID, text string) error {
	return c.write(domain.ChatMessageIn{Type: domain.MsgTypeChatMessage, PartyID: partyID, Message: text})
}

// Close flushes queued frames, sends a close frame and drops the
// connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	<-c.writerEnd
	return c.ws.Close()
}

func (c *Conn) write(v any) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.out <- v:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

func (c *Conn) writeLoop() {
	defer close(c.writerEnd)
	l := log.L()

	send := func(v any) bool {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteJSON(v); err != nil {
			l.Warn().Err(err).Msg("chat write failed")
			c.setErr(err)
			c.closeOnce.Do(func() { close(c.done) })
			return false
		}
		return true
	}

	for {
		select {
		case v := <-c.out:
			if !send(v) {
				return
			}
		case <-c.done:
			for {
				select {
				case v := <-c.out:
					if !send(v) {
						return
					}
				default:
					_ = c.ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(writeWait))
					return
				}
			}
		}
	}
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	l := log.L()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.setErr(err)
			c.closeOnce.Do(func() { close(c.done) })
			return
		}

		f, err := DecodeFrame(data)
		if err != nil {
			l.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}
		c.frames <- f
	}
}

// DecodeFrame parses a server frame.
func DecodeFrame(data []byte) (Frame, error) {
	var base domain.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return Frame{}, err
	}

	f := Frame{Type: base.Type}
	switch base.Type {
	case domain.MsgTypeChatMessage:
		var out domain.ChatMessageOut
		if err := json.Unmarshal(data, &out); err != nil {
			return Frame{}, err
		}
		f.PartyID = out.PartyID
		f.Chat = &out.ChatMessage
	case domain.MsgTypeError:
		var e domain.ErrorMessage
		if err := json.Unmarshal(data, &e); err != nil {
			return Frame{}, err
		}
		f.PartyID, f.Code, f.Detail = e.PartyID, e.Code, e.Message
	case domain.MsgTypePartyJoined, domain.MsgTypePartyLeft:
		var p domain.PartyMessage
		if err := json.Unmarshal(data, &p); err != nil {
			return Frame{}, err
		}
		f.PartyID = p.PartyID
	}
	return f, nil
}
