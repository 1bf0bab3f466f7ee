package composer

import "github.com/weiawesome/sync-party/internal/domain"

// DefaultHistoryLimit caps messages kept per party on the client.
const DefaultHistoryLimit = 500

// History is the client's partyId to message list store. Messages keep
// the order they arrived in; a repeated id is dropped.
type History struct {
	limit   int
	parties map[string][]domain.ChatMessage
	seen    map[string]map[string]struct{}
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		limit:   limit,
		parties: make(map[string][]domain.ChatMessage),
		seen:    make(map[string]map[string]struct{}),
	}
}

// Append records msg and reports whether it was new.
func (h *History) Append(msg domain.ChatMessage) bool {
	ids, ok := h.seen[msg.PartyID]
	if !ok {
		ids = make(map[string]struct{})
		h.seen[msg.PartyID] = ids
	}
	if msg.ID != "" {
		if _, dup := ids[msg.ID]; dup {
			return false
		}
		ids[msg.ID] = struct{}{}
	}

	list := append(h.parties[msg.PartyID], msg)
	if over := len(list) - h.limit; over > 0 {
		for _, old := range list[:over] {
			delete(ids, old.ID)
		}
		list = append([]domain.ChatMessage(nil), list[over:]...)
	}
	h.parties[msg.PartyID] = list
	return true
}

// Messages returns a copy of the party's messages.
func (h *History) Messages(partyID string) []domain.ChatMessage {
	list := h.parties[partyID]
	out := make([]domain.ChatMessage, len(list))
	copy(out, list)
	return out
}

func (h *History) Len(partyID string) int {
	return len(h.parties[partyID])
}

// Clear forgets a party, e.g. after leaving it.
func (h *History) Clear(partyID string) {
	delete(h.parties, partyID)
	delete(h.seen, partyID)
}
