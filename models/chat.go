package models

import (
	"github.com/lib/pq"
)

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

const (
	ChatStatusPending  = "pending"
	ChatStatusResolved = "resolved"
	ChatStatusFailed   = "failed"
)

// ChatMessage is one turn of the conversation log. Assistant turns move
// pending -> resolved/failed; user turns are resolved on creation.
type ChatMessage struct {
	JsonModel
	OwnerID uint        `gorm:"index" json:"-"`
	Owner   UserAccount `json:"-"`

	Role    string `json:"role"`
	Content string `gorm:"type:text" json:"content"`
	Status  string `json:"status"`

	// value-copy of the normalized outfit card, when the reply carried one
	CardJSON *string `gorm:"type:text" json:"-"`

	Suggestions pq.StringArray `gorm:"type:text[]" json:"suggestions"`
}

type SendMessageIn struct {
	Text string `json:"text" validate:"required"`
}

type ClearChatIn struct {
	Confirm bool `json:"confirm"`
}

type ChatMessageOut struct {
	ID          uint            `json:"id"`
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	Status      string          `json:"status"`
	Card        *OutfitCardData `json:"card,omitempty"`
	Suggestions []string        `json:"suggestions"`
	CreatedAt   string          `json:"created_at"`
}

type ChatHistoryOut struct {
	Messages []ChatMessageOut `json:"messages"`
}
