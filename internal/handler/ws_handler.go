package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/sync-party/internal/audit"
	"github.com/weiawesome/sync-party/internal/auth"
	"github.com/weiawesome/sync-party/internal/chat"
	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/hub"
	"github.com/weiawesome/sync-party/pkg/log"
	"github.com/weiawesome/sync-party/pkg/response"
)

// WSHandler upgrades authenticated requests and routes chat frames.
type WSHandler struct {
	hub      *hub.Hub
	channel  *chat.Channel
	sessions *auth.Middleware
	cfg      hub.Config
	upgrader websocket.Upgrader
}

// NewWSHandler creates the websocket handler. An empty origins list
// accepts any origin.
func NewWSHandler(h *hub.Hub, channel *chat.Channel, sessions *auth.Middleware, cfg hub.Config, origins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return &WSHandler{
		hub:      h,
		channel:  channel,
		sessions: sessions,
		cfg:      cfg.WithDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/chat/ws", h.sessions.RequireAuth(), h.HandleWebSocket)
}

func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	p := auth.PrincipalFrom(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.NewString(), *p, conn, h.cfg)
	h.hub.Register(client)

	l := log.L().With().
		Str(log.FieldConnID, client.ID()).
		Str(log.FieldUserID, p.ID).
		Logger()
	l.Info().Msg("chat connection opened")

	go client.WritePump()
	go client.ReadPump(h.handleMessage, h.handleClose)
}

func (h *WSHandler) handleClose(client *hub.Client) {
	h.channel.Disconnect(client)
	h.hub.Unregister(client)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(response.MsgValidationError, "invalid message format"))
		return
	}

	ctx := log.WithLogger(context.Background(), log.L().With().
		Str(log.FieldConnID, client.ID()).
		Str(log.FieldUserID, client.Principal().ID).
		Logger())

	switch base.Type {
	case domain.MsgTypeJoinParty:
		var msg domain.PartyMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(response.MsgValidationError, "invalid join_party message"))
			return
		}
		if err := h.channel.Subscribe(ctx, client, client.Principal(), msg.PartyID); err != nil {
			h.reject(ctx, client, err, msg.PartyID)
			return
		}
		client.SendMessage(&domain.PartyMessage{Type: domain.MsgTypePartyJoined, PartyID: msg.PartyID})

	case domain.MsgTypeLeaveParty:
		var msg domain.PartyMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(response.MsgValidationError, "invalid leave_party message"))
			return
		}
		h.channel.Unsubscribe(client, msg.PartyID)
		client.SendMessage(&domain.PartyMessage{Type: domain.MsgTypePartyLeft, PartyID: msg.PartyID})

	case domain.MsgTypeChatMessage:
		var msg domain.ChatMessageIn
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(response.MsgValidationError, "invalid chat_message"))
			return
		}
		if _, err := h.channel.Publish(ctx, msg.Message, client.Principal(), msg.PartyID); err != nil {
			h.reject(ctx, client, err, msg.PartyID)
		}

	case domain.MsgTypePing:
		client.SendMessage(domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(response.MsgValidationError, "unknown message type"))
	}
}

func (h *WSHandler) reject(ctx context.Context, client *hub.Client, err error, partyID string) {
	status, code := statusFor(err)
	l := log.Ctx(ctx)
	if status == http.StatusInternalServerError {
		l.Error().Err(err).Str(log.FieldPartyID, partyID).Msg("chat frame failed")
	} else {
		l.Debug().Err(err).Str(log.FieldPartyID, partyID).Msg("chat frame rejected")
	}

	if errors.Is(err, domain.ErrNotAuthorized) {
		audit.LogWithDetail(ctx, audit.ActionChatDenied, client.Principal().ID, partyID, "chat action denied")
	}

	frame := domain.NewErrorMessage(code, "")
	frame.PartyID = partyID
	client.SendMessage(frame)
}
