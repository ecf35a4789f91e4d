package test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"stylrapi/models"
	"stylrapi/services"

	"github.com/golang-jwt/jwt/v4"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	log.Println(JsonString(param))
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func Int64Pointer(i int64) *int64 {
	return &i
}

func NewRefString(data string) *string {
	return &data
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	user := &models.UserAccount{
		Name:      "OurName",
		Email:     "email@example.com",
		GoogleID:  "12232",
		Platform:  models.PlatformIOS,
		LastIp:    "123.122.122.122",
		Status:    "FINISHED_AUTH",
		AvatarURL: "pictureurl",
	}
	db.Create(&user)

	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      "android",
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU",
		Active:        true,
	}
	db.Save(&tokenDb)
	db.First(&user, user.ID)
	return user
}

func FakeUserV2(db *gorm.DB, userName string, email string) *models.UserAccount {
	if email == "" {
		email = "email@example.com"
	}
	user := &models.UserAccount{
		Name:      userName,
		Email:     email,
		GoogleID:  "12232",
		Platform:  models.PlatformIOS,
		LastIp:    "123.122.122.122",
		Status:    "FINISHED_AUTH",
		AvatarURL: "pictureurl",
	}
	db.Create(&user)
	db.First(&user, user.ID)
	return user
}

// FakeClothingItem seeds one wardrobe item directly.
func FakeClothingItem(db *gorm.DB, ownerID uint, itemID string, category string, color string) *models.ClothingItem {
	item := &models.ClothingItem{
		ItemID:   itemID,
		OwnerID:  ownerID,
		ImageKey: fmt.Sprintf("wardrobe/%v/%s.jpg", ownerID, itemID),
		Category: category,
		Color:    color,
		Season:   []string{"summer"},
		Style:    []string{"casual"},
	}
	db.Create(&item)
	return item
}

type GoogleServiceMock struct{}

func (gsm GoogleServiceMock) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {

	return &idtoken.Payload{Issuer: "Issue", Audience: "AAA", Expires: 119919191919, IssuedAt: 12312321321, Subject: "fake@example.com", Claims: map[string]interface{}{
		"email":   "fake@example.com",
		"picture": "pictureurl",
		"name":    "Fake Name",
		"sub":     "123googleid",
	}}, nil

}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

// URLCacheMock returns a fixed read URL without going anywhere near R2.
type URLCacheMock struct {
	MockUrl string
}

func (cache URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", nil
	}
	return cache.MockUrl, nil
}

// MockStylist replays canned responses and records what it was called
// with. Zero-value fields fall back to sensible defaults.
type MockStylist struct {
	ClassifyResponse string
	OutfitResponse   string
	ChatResponse     string
	SearchResponse   string
	Err              error

	// 1-based classify call index that fails, 0 fails none
	ClassifyErrOn int

	ClassifyCalls int
	OutfitCalls   int
	ChatCalls     int
	SearchCalls   int
	LastInventory string
	LastMessage   string
}

func (m *MockStylist) ClassifyClothing(ctx context.Context, filePath string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	m.ClassifyCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.ClassifyErrOn > 0 && m.ClassifyCalls == m.ClassifyErrOn {
		return nil, errors.New("classification failed")
	}
	response := m.ClassifyResponse
	if response == "" {
		response = `{"category": "Top", "color": "Blue", "season": ["summer"], "style": ["casual"], "description": "A blue cotton t-shirt."}`
	}
	return &services.LLMResponse{
		Response:           response,
		InputTokenCount:    10,
		TotalTokenCount:    11,
		ThoughtsTokenCount: 12,
		OutputTokenCount:   13,
	}, nil
}

func (m *MockStylist) GenerateOutfit(ctx context.Context, occasion string, notes string, inventoryJSON string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	m.OutfitCalls++
	m.LastInventory = inventoryJSON
	if m.Err != nil {
		return nil, m.Err
	}
	response := m.OutfitResponse
	if response == "" {
		response = `{
			"outfitName": "Summer Casual",
			"description": "Light and easy for a warm day.",
			"matchScore": 88,
			"selectedItemIds": ["item-1"],
			"missingItems": ["White sneakers"],
			"reasoning": "The blue top works well for daytime."
		}`
	}
	return &services.LLMResponse{
		Response:        response,
		InputTokenCount: 10,
		TotalTokenCount: 11,
	}, nil
}

func (m *MockStylist) StylistChat(ctx context.Context, message string, inventoryJSON string, history []services.ChatTurn, modelName services.LLMModelName) (*services.LLMResponse, error) {
	m.ChatCalls++
	m.LastMessage = message
	m.LastInventory = inventoryJSON
	if m.Err != nil {
		return nil, m.Err
	}
	response := m.ChatResponse
	if response == "" {
		response = `{
			"message": "Here is a look for you!",
			"suggestions": ["Show me another", "Make it dressier"],
			"outfits": [{
				"id": "outfit-1",
				"title": "Weekend Look",
				"description": "Relaxed weekend outfit.",
				"matchScore": 90,
				"selectedItemIds": ["item-1"],
				"missingItems": [],
				"pinterestLooks": [],
				"reasoning": "Comfortable and casual."
			}]
		}`
	}
	return &services.LLMResponse{
		Response:        response,
		InputTokenCount: 10,
		TotalTokenCount: 11,
	}, nil
}

func (m *MockStylist) SearchGrounded(ctx context.Context, query string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	m.SearchCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.SearchResponse != "" {
		// overridden responses come back without grounding
		return &services.LLMResponse{Response: m.SearchResponse}, nil
	}
	return &services.LLMResponse{
		Response: "Linen shirts are trending this season.",
		GroundingSources: []services.GroundingSource{
			{Title: "Fashion Weekly", URL: "https://example.com/trends"},
		},
	}, nil
}
