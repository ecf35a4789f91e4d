package store

import (
	"encoding/json"
	"errors"
	"strings"

	"stylrapi/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var ErrBlankMessage = errors.New("message text is blank")

// ErrReplyInFlight guards the two-phase exchange: one pending assistant
// reply per user at a time.
var ErrReplyInFlight = errors.New("a stylist reply is already in flight")

// FallbackReply is shown when the stylist call fails outright.
const FallbackReply = "Sorry, I'm having trouble connecting right now. Please try again in a moment."

const welcomeMessage = "Hi! I'm your personal stylist. Ask me what to wear, or tell me about an occasion and I'll put together a look from your wardrobe."

var welcomeSuggestions = pq.StringArray{
	"What should I wear today?",
	"Build me a casual weekend look",
	"What's missing from my wardrobe?",
}

// ConversationStore owns the chat log. An exchange is two rows: the user
// turn, stored resolved, and the assistant turn, stored pending and later
// flipped to resolved or failed.
type ConversationStore struct {
	DB *gorm.DB
}

func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{DB: db}
}

// Messages returns the log oldest first, seeding the greeting when the
// user has no history yet.
func (s *ConversationStore) Messages(ownerID uint) ([]models.ChatMessage, error) {
	messages := []models.ChatMessage{}
	result := s.DB.Where("owner_id = ?", ownerID).Order("id asc").Find(&messages)
	if result.Error != nil {
		return nil, result.Error
	}
	if len(messages) > 0 {
		return messages, nil
	}

	greeting := models.ChatMessage{
		OwnerID:     ownerID,
		Role:        models.ChatRoleAssistant,
		Content:     welcomeMessage,
		Status:      models.ChatStatusResolved,
		Suggestions: welcomeSuggestions,
	}
	if err := s.DB.Create(&greeting).Error; err != nil {
		return nil, err
	}
	return []models.ChatMessage{greeting}, nil
}

// BeginExchange records the user turn and a pending assistant turn in one
// transaction. Blank text is a no-op reported as ErrBlankMessage; a still
// pending earlier reply blocks the new one with ErrReplyInFlight.
func (s *ConversationStore) BeginExchange(ownerID uint, text string) (*models.ChatMessage, *models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrBlankMessage
	}

	var userMsg, pendingMsg models.ChatMessage
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var pendingCount int64
		if err := tx.Model(&models.ChatMessage{}).Where(
			"owner_id = ? and status = ?", ownerID, models.ChatStatusPending,
		).Count(&pendingCount).Error; err != nil {
			return err
		}
		if pendingCount > 0 {
			return ErrReplyInFlight
		}

		userMsg = models.ChatMessage{
			OwnerID: ownerID,
			Role:    models.ChatRoleUser,
			Content: text,
			Status:  models.ChatStatusResolved,
		}
		if err := tx.Create(&userMsg).Error; err != nil {
			return err
		}

		pendingMsg = models.ChatMessage{
			OwnerID: ownerID,
			Role:    models.ChatRoleAssistant,
			Status:  models.ChatStatusPending,
		}
		return tx.Create(&pendingMsg).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &userMsg, &pendingMsg, nil
}

// ResolveExchange completes the pending assistant turn with the reply
// text, the optional normalized card and the follow-up suggestions.
func (s *ConversationStore) ResolveExchange(messageID uint, content string, card *models.OutfitCardData, suggestions []string) error {
	updates := map[string]interface{}{
		"content":     content,
		"status":      models.ChatStatusResolved,
		"suggestions": pq.StringArray(suggestions),
	}
	if card != nil {
		cardJSON, err := json.Marshal(card)
		if err != nil {
			return err
		}
		updates["card_json"] = string(cardJSON)
	}
	return s.DB.Model(&models.ChatMessage{}).Where("id = ?", messageID).Updates(updates).Error
}

// FailExchange flips the pending assistant turn to failed with the
// connectivity fallback text. The user turn stays in the log.
func (s *ConversationStore) FailExchange(messageID uint) error {
	return s.DB.Model(&models.ChatMessage{}).Where("id = ?", messageID).Updates(map[string]interface{}{
		"content": FallbackReply,
		"status":  models.ChatStatusFailed,
	}).Error
}

// Clear wipes the log. The next Messages call re-seeds the greeting.
func (s *ConversationStore) Clear(ownerID uint) error {
	return s.DB.Where("owner_id = ?", ownerID).Delete(&models.ChatMessage{}).Error
}

// History returns up to limit most recent resolved turns, oldest first,
// shaped for replay into the stylist call.
func (s *ConversationStore) History(ownerID uint, limit int) ([]models.ChatMessage, error) {
	var recent []models.ChatMessage
	result := s.DB.Where(
		"owner_id = ? and status = ? and content <> ''", ownerID, models.ChatStatusResolved,
	).Order("id desc").Limit(limit).Find(&recent)
	if result.Error != nil {
		return nil, result.Error
	}
	// reverse back to chronological order
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

// Card decodes the stored snapshot of an assistant turn, nil when absent
// or unreadable.
func Card(message *models.ChatMessage) *models.OutfitCardData {
	if message.CardJSON == nil {
		return nil
	}
	var card models.OutfitCardData
	if err := json.Unmarshal([]byte(*message.CardJSON), &card); err != nil {
		return nil
	}
	ensureCardSlices(&card)
	return &card
}
