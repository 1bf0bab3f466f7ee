package domain

import "time"

// ChatMessage is one accepted chat line. ArrivalOrder is the per-party
// sequence assigned by the instance that delivered it.
type ChatMessage struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	PartyID      string    `json:"partyId"`
	UserName     string    `json:"userName"`
	Message      string    `json:"message"`
	ArrivalOrder uint64    `json:"arrivalOrder"`
	Timestamp    time.Time `json:"timestamp"`
}

// WebSocket message types from client.
const (
	MsgTypeJoinParty   = "join_party"
	MsgTypeLeaveParty  = "leave_party"
	MsgTypeChatMessage = "chat_message"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypePartyJoined = "party_joined"
	MsgTypePartyLeft   = "party_left"
	MsgTypeError       = "error"
	MsgTypePong        = "pong"
)

// BaseMessage is decoded first to dispatch on Type.
type BaseMessage struct {
	Type string `json:"type"`
}

// PartyMessage is join_party or leave_party.
type PartyMessage struct {
	Type    string `json:"type"`
	PartyID string `json:"partyId"`
}

// ChatMessageIn is a chat line sent by a client.
type ChatMessageIn struct {
	Type    string `json:"type"`
	PartyID string `json:"partyId"`
	Message string `json:"message"`
}

// ChatMessageOut is the broadcast frame.
type ChatMessageOut struct {
	Type string `json:"type"`
	ChatMessage
}

// NewChatMessageOut wraps m for the wire.
func NewChatMessageOut(m ChatMessage) *ChatMessageOut {
	return &ChatMessageOut{Type: MsgTypeChatMessage, ChatMessage: m}
}

// ErrorMessage reports a rejected client frame. Code is a reason key.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	PartyID string `json:"partyId,omitempty"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{Type: MsgTypeError, Code: code, Message: message}
}
