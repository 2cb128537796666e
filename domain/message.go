// Package domain contains core concepts of the chat system.
// This file defines Message entities and related rules.
// Messages are immutable once persisted: ID, Seq and CreatedAt come from the store.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText    MessageType = "text"
	MessageImage   MessageType = "image"
	MessageVideo   MessageType = "video"
	MessageAudio   MessageType = "audio"
	MessageFile    MessageType = "file"
	MessageSticker MessageType = "sticker"
)

func (t MessageType) IsValid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageFile, MessageSticker:
		return true
	}
	return false
}

// Message represents a persisted chat message.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	Type           MessageType `json:"typeMessage"`
	Content        string      `json:"content"`
	Seq            uint64      `json:"seq"`
	CreatedAt      time.Time   `json:"time"`
}
