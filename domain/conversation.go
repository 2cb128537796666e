package domain

import (
	"slices"
	"time"
)

// Conversation is owned by the store. The relay only reads its participants
// and moves the last-message pointer forward.
type Conversation struct {
	ID            string    `json:"id"`
	IsGroup       bool      `json:"isGroup"`
	Participants  []string  `json:"participants"`
	GroupName     string    `json:"groupName,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	LastMessageID string    `json:"lastMessage,omitempty"`
	LastActivity  time.Time `json:"lastActivity"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (c Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}
