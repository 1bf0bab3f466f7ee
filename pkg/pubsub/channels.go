package pubsub

import "fmt"

// Channel names follow {scope}:party:{partyID}:{stream}.
const (
	ChannelPartyChat = "chat:party:%s:messages"
	PatternPartyChat = "chat:party:*:messages"
)

// Event types.
const (
	EventChatMessage = "chat_message"
)

// PartyChatChannel returns the chat channel for a party.
func PartyChatChannel(partyID string) string {
	return fmt.Sprintf(ChannelPartyChat, partyID)
}
