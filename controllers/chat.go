package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"stylrapi/models"
	"stylrapi/services"
	"stylrapi/store"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type ChatController struct {
	Stylist services.LLMStylist
}

// turns replayed to the model for context, the rest stays server-side only
const chatHistoryWindow = 12

func messageOut(message models.ChatMessage) models.ChatMessageOut {
	out := models.ChatMessageOut{
		ID:          message.ID,
		Role:        message.Role,
		Content:     message.Content,
		Status:      message.Status,
		Card:        store.Card(&message),
		Suggestions: message.Suggestions,
		CreatedAt:   message.CreatedAt.Format(time.RFC3339),
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	return out
}

func (controller *ChatController) ChatRoutes(g *echo.Group) {
	g.GET("/messages", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		conversation := store.NewConversationStore(db)

		messages, err := conversation.Messages(user.ID)
		if err != nil {
			fmt.Println("Error loading chat messages", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		out := models.ChatHistoryOut{Messages: []models.ChatMessageOut{}}
		for _, message := range messages {
			out.Messages = append(out.Messages, messageOut(message))
		}
		return c.JSON(http.StatusOK, out)
	})

	g.POST("/send", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		conversation := store.NewConversationStore(db)
		wardrobe := store.NewWardrobeStore(db)

		var req models.SendMessageIn
		if err := c.Bind(&req); err != nil {
			fmt.Println(err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}

		userMsg, pendingMsg, err := conversation.BeginExchange(user.ID, req.Text)
		if errors.Is(err, store.ErrBlankMessage) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Message text is required"})
		}
		if errors.Is(err, store.ErrReplyInFlight) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "Please wait for the current reply to finish"})
		}
		if err != nil {
			fmt.Println("Error starting chat exchange", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}

		inventoryJSON, err := wardrobe.InventoryJSON(user.ID)
		if err != nil {
			fmt.Println("Error serializing wardrobe for chat", err)
			sentry.CaptureException(err)
			conversation.FailExchange(pendingMsg.ID)
			return controller.respondExchange(c, db, userMsg.ID, pendingMsg.ID)
		}

		historyRows, err := conversation.History(user.ID, chatHistoryWindow)
		if err != nil {
			fmt.Println("Error loading chat history", err)
			sentry.CaptureException(err)
			historyRows = nil
		}
		history := []services.ChatTurn{}
		for _, row := range historyRows {
			// skip the user turn we just created, it is sent as the message
			if row.ID == userMsg.ID {
				continue
			}
			role := "user"
			if row.Role == models.ChatRoleAssistant {
				role = "model"
			}
			history = append(history, services.ChatTurn{Role: role, Text: row.Content})
		}

		response, err := controller.Stylist.StylistChat(c.Request().Context(), req.Text, inventoryJSON, history, userModel(user))
		if err != nil {
			fmt.Println("Error on stylist chat call", err)
			sentry.CaptureException(err)
			if failErr := conversation.FailExchange(pendingMsg.ID); failErr != nil {
				sentry.CaptureException(failErr)
			}
			return controller.respondExchange(c, db, userMsg.ID, pendingMsg.ID)
		}

		var payload services.RawStylistPayload
		if err := json.Unmarshal([]byte(services.CleanModelJSON(response.Response)), &payload); err != nil {
			fmt.Printf("[Chat] Unparseable stylist payload for user %v: %q\n", user.ID, response.Response)
			sentry.CaptureException(fmt.Errorf("unparseable stylist chat payload: %v", err))
			if failErr := conversation.FailExchange(pendingMsg.ID); failErr != nil {
				sentry.CaptureException(failErr)
			}
			return controller.respondExchange(c, db, userMsg.ID, pendingMsg.ID)
		}

		card := services.NormalizeStylistPayload(&payload)
		content := payload.Message
		if content == "" {
			if card != nil {
				content = "Here's a look I put together for you."
			} else {
				content = store.FallbackReply
			}
		}
		if err := conversation.ResolveExchange(pendingMsg.ID, content, card, payload.Suggestions); err != nil {
			fmt.Println("Error resolving chat exchange", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		return controller.respondExchange(c, db, userMsg.ID, pendingMsg.ID)
	})

	g.POST("/clear", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		conversation := store.NewConversationStore(db)

		var req models.ClearChatIn
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if !req.Confirm {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Confirmation required to clear the conversation"})
		}

		if err := conversation.Clear(user.ID); err != nil {
			fmt.Println("Error clearing chat", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		messages, err := conversation.Messages(user.ID)
		if err != nil {
			fmt.Println("Error re-seeding chat", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		out := models.ChatHistoryOut{Messages: []models.ChatMessageOut{}}
		for _, message := range messages {
			out.Messages = append(out.Messages, messageOut(message))
		}
		return c.JSON(http.StatusOK, out)
	})
}

// respondExchange reloads both turns so the client always sees the stored
// state of the exchange, failed replies included.
func (controller *ChatController) respondExchange(c echo.Context, db *gorm.DB, userMsgID, replyMsgID uint) error {
	var userMsg, replyMsg models.ChatMessage
	if err := db.First(&userMsg, userMsgID).Error; err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	if err := db.First(&replyMsg, replyMsgID).Error; err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": messageOut(userMsg),
		"reply":   messageOut(replyMsg),
	})
}
