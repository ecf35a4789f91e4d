package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stylrapi/dbhelper"
	"stylrapi/models"
	"stylrapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOutfitOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	stylist := &test.MockStylist{}
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, stylist, nil, nil)
	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "item-1", "Top", "Blue")

	reqBody := models.GenerateOutfitIn{Occasion: "casual weekend", Notes: "warm weather"}
	req := test.NewJSONAuthRequest("POST", "/outfits/generate", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "Expected 200 OK, got %d: %s", rec.Code, rec.Body.String())
	var response models.OutfitCardOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Summer Casual", response.Card.Title)
	assert.Equal(t, 88, response.Card.MatchScore)
	assert.Equal(t, []string{"item-1"}, response.Card.SelectedItemIDs)
	require.Len(t, response.Card.MissingItems, 1)
	assert.Equal(t, "White sneakers", response.Card.MissingItems[0].Name)
	require.Len(t, response.ResolvedItems, 1)
	assert.Equal(t, "item-1", response.ResolvedItems[0].ID)

	// the wardrobe went into the prompt
	assert.Equal(t, 1, stylist.OutfitCalls)
	assert.Contains(t, stylist.LastInventory, "item-1")
}

func TestGenerateOutfitDanglingItemDropped(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	stylist := &test.MockStylist{
		OutfitResponse: `{"outfitName": "Look", "selectedItemIds": ["item-1", "deleted-item"], "reasoning": "r"}`,
	}
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, stylist, nil, nil)
	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "item-1", "Top", "Blue")

	req := test.NewJSONAuthRequest("POST", "/outfits/generate", userPk(user), models.GenerateOutfitIn{Occasion: "work"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.OutfitCardOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	// the reference list keeps both ids, resolution drops the dangling one
	assert.Equal(t, []string{"item-1", "deleted-item"}, response.Card.SelectedItemIDs)
	require.Len(t, response.ResolvedItems, 1)
	assert.Equal(t, "item-1", response.ResolvedItems[0].ID)
}

func TestGenerateOutfitLegacyPayload(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	stylist := &test.MockStylist{
		OutfitResponse: "```json\n" + `{
			"selectedItemIds": ["item-1"],
			"reasoning": "Legacy style reply",
			"inspirationImages": [{"title": "Look", "imageUrl": "u1", "link": "l1"}],
			"shopping": [{"name": "Loafers", "priceRange": "$50", "links": [{"label": "Amazon", "url": "https://amzn.example"}]}]
		}` + "\n```",
	}
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, stylist, nil, nil)
	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "item-1", "Top", "Blue")

	req := test.NewJSONAuthRequest("POST", "/outfits/generate", userPk(user), models.GenerateOutfitIn{Occasion: "dinner"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response models.OutfitCardOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Legacy style reply", response.Card.Reasoning)
	require.Len(t, response.Card.PinterestLooks, 1)
	assert.Equal(t, "u1", response.Card.PinterestLooks[0].PreviewImageURL)
	assert.Equal(t, "l1", response.Card.PinterestLooks[0].PinterestURL)
	require.Len(t, response.Card.MissingItems, 1)
	assert.Equal(t, "Amazon", response.Card.MissingItems[0].ShoppingOptions[0].StoreName)
}

func TestGenerateOutfitMalformedPayload(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	stylist := &test.MockStylist{OutfitResponse: "Sorry, I cannot do that."}
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, stylist, nil, nil)
	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "item-1", "Top", "Blue")

	req := test.NewJSONAuthRequest("POST", "/outfits/generate", userPk(user), models.GenerateOutfitIn{Occasion: "party"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGenerateOutfitEmptyPayloadNullCard(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	stylist := &test.MockStylist{OutfitResponse: `{"message": "Tell me more about the occasion."}`}
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, stylist, nil, nil)
	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "item-1", "Top", "Blue")

	req := test.NewJSONAuthRequest("POST", "/outfits/generate", userPk(user), models.GenerateOutfitIn{Occasion: "hmm"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Nil(t, response["card"])
}

func TestGenerateOutfitStylistDown(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	stylist := &test.MockStylist{Err: errors.New("deadline exceeded")}
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, stylist, nil, nil)
	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "item-1", "Top", "Blue")

	req := test.NewJSONAuthRequest("POST", "/outfits/generate", userPk(user), models.GenerateOutfitIn{Occasion: "party"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGenerateOutfitContentViolation(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	stylist := &test.MockStylist{Err: errors.New("content violation: HARM_CATEGORY")}
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, stylist, nil, nil)
	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "item-1", "Top", "Blue")

	req := test.NewJSONAuthRequest("POST", "/outfits/generate", userPk(user), models.GenerateOutfitIn{Occasion: "party"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGenerateOutfitMissingOccasion(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/outfits/generate", userPk(user), models.GenerateOutfitIn{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateOutfitEmptyWardrobe(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	stylist := &test.MockStylist{}
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, stylist, nil, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/outfits/generate", userPk(user), models.GenerateOutfitIn{Occasion: "party"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// rejected locally, the stylist never sees the request
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, stylist.OutfitCalls)
}

func TestGenerateOutfitWhitespaceOccasion(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	stylist := &test.MockStylist{}
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, stylist, nil, nil)
	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "item-1", "Top", "Blue")

	req := test.NewJSONAuthRequest("POST", "/outfits/generate", userPk(user), models.GenerateOutfitIn{Occasion: "   \n\t"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, stylist.OutfitCalls)
}

func TestToggleFavoriteRoundTrip(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	card := models.OutfitCardData{
		ID:              "outfit-1",
		Title:           "Evening Look",
		SelectedItemIDs: []string{"item-1"},
		MissingItems:    []models.MissingItem{},
		PinterestLooks:  []models.PinterestLook{},
	}

	req := test.NewJSONAuthRequest("POST", "/outfits/favorite", userPk(user), models.ToggleFavoriteIn{Card: card})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.ToggleFavoriteOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "outfit-1", response.OutfitID)
	assert.True(t, response.Favorited)

	// toggle again removes it
	req = test.NewJSONAuthRequest("POST", "/outfits/favorite", userPk(user), models.ToggleFavoriteIn{Card: card})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.False(t, response.Favorited)
}

func TestToggleFavoriteMissingCardID(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/outfits/favorite", userPk(user), models.ToggleFavoriteIn{Card: models.OutfitCardData{Title: "No id"}})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFavoritesResolvesItems(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "item-1", "Top", "Blue")

	card := models.OutfitCardData{
		ID:              "outfit-1",
		Title:           "Saved Look",
		SelectedItemIDs: []string{"item-1", "gone-item"},
		MissingItems:    []models.MissingItem{},
		PinterestLooks:  []models.PinterestLook{},
	}
	req := test.NewJSONAuthRequest("POST", "/outfits/favorite", userPk(user), models.ToggleFavoriteIn{Card: card})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = test.NewJSONAuthRequest("GET", "/outfits/favorites", userPk(user), "")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.FavoritesListOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Favorites, 1)
	assert.Equal(t, "Saved Look", response.Favorites[0].Card.Title)
	// stored references untouched, dangling id dropped only at render time
	assert.Equal(t, []string{"item-1", "gone-item"}, response.Favorites[0].Card.SelectedItemIDs)
	require.Len(t, response.Favorites[0].ResolvedItems, 1)
	assert.Equal(t, "item-1", response.Favorites[0].ResolvedItems[0].ID)
}

func TestListFavoritesEmpty(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("GET", "/outfits/favorites", userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.FavoritesListOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotNil(t, response.Favorites)
	assert.Len(t, response.Favorites, 0)
}
