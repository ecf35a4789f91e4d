package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"stylrapi/models"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrMalformedPayload means the stylist response was not parseable JSON at
// all. Callers show a retry prompt for this one; a parseable payload with
// nothing to display comes back as (nil, nil) instead.
var ErrMalformedPayload = errors.New("stylist payload is not valid JSON")

// RawStylistPayload covers every schema generation the Gemini stylist has
// produced so far: the current outfits[] contract plus the legacy top-level
// selectedItemIds / inspirationImages / shopping fields. A single payload
// may mix both generations, so normalization falls back per field, never
// per schema.
type RawStylistPayload struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`

	Outfits []RawOutfit `json:"outfits"`

	// legacy generation
	SelectedItemIDs   []string              `json:"selectedItemIds"`
	Reasoning         string                `json:"reasoning"`
	InspirationImages []RawInspirationImage `json:"inspirationImages"`
	Shopping          []RawShoppingItem     `json:"shopping"`
}

type RawOutfit struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	OutfitName  string `json:"outfitName"`
	Description string `json:"description"`
	MatchScore  *int   `json:"matchScore"`

	SelectedItemIDs []string           `json:"selectedItemIds"`
	MissingItems    []RawMissingItem   `json:"missingItems"`
	PinterestLooks  []RawPinterestLook `json:"pinterestLooks"`
	Reasoning       string             `json:"reasoning"`
}

type RawMissingItem struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	SearchQuery     string              `json:"searchQuery"`
	ShoppingOptions []RawShoppingOption `json:"shoppingOptions"`
}

// The outfit-generation contract sends missingItems as plain strings, the
// stylist-chat contract sends objects. Accept both.
func (m *RawMissingItem) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*m = RawMissingItem{Name: name}
		return nil
	}
	type rawMissingItemAlias RawMissingItem
	var alias rawMissingItemAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*m = RawMissingItem(alias)
	return nil
}

type RawShoppingOption struct {
	StoreName string `json:"storeName"`
	URL       string `json:"url"`
	Price     string `json:"price"`
	Type      string `json:"type"`
}

type RawPinterestLook struct {
	Title           string `json:"title"`
	PreviewImageURL string `json:"previewImageUrl"`
	PinterestURL    string `json:"pinterestUrl"`

	// legacy inspirationImages keys, seen inline in mixed payloads
	ImageURL string `json:"imageUrl"`
	Link     string `json:"link"`
}

type RawInspirationImage struct {
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	Link     string `json:"link"`
}

type RawShoppingItem struct {
	Name       string            `json:"name"`
	PriceRange string            `json:"priceRange"`
	Links      []RawShoppingLink `json:"links"`
}

type RawShoppingLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// CleanModelJSON strips the markdown code fences Gemini likes to wrap JSON
// responses in.
func CleanModelJSON(text string) string {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	return strings.TrimSpace(clean)
}

// NormalizeOutfitPayload parses a raw stylist response and maps it onto the
// canonical card. A JSON parse failure is reported as ErrMalformedPayload;
// a payload with no displayable outfit content returns (nil, nil).
func NormalizeOutfitPayload(raw []byte) (*models.OutfitCardData, error) {
	var payload RawStylistPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return NormalizeStylistPayload(&payload), nil
}

// NormalizeStylistPayload builds one OutfitCardData from an already-decoded
// payload. Every canonical field prefers the current-schema source and
// falls back to its legacy equivalent only when the current one is absent
// or empty. The returned card always has non-nil slices.
func NormalizeStylistPayload(payload *RawStylistPayload) *models.OutfitCardData {
	card := &models.OutfitCardData{
		SelectedItemIDs: []string{},
		MissingItems:    []models.MissingItem{},
		PinterestLooks:  []models.PinterestLook{},
	}

	var outfit RawOutfit
	if len(payload.Outfits) > 0 {
		outfit = payload.Outfits[0]
	}

	card.Title = firstNonEmpty(outfit.Title, outfit.OutfitName)
	card.Description = outfit.Description
	card.Reasoning = firstNonEmpty(outfit.Reasoning, payload.Reasoning)
	if outfit.MatchScore != nil {
		card.MatchScore = clampScore(*outfit.MatchScore)
	}

	selected := outfit.SelectedItemIDs
	if len(selected) == 0 {
		selected = payload.SelectedItemIDs
	}
	for _, id := range selected {
		if strings.TrimSpace(id) != "" {
			card.SelectedItemIDs = append(card.SelectedItemIDs, id)
		}
	}

	for _, raw := range outfit.MissingItems {
		item := models.MissingItem{
			ID:              firstNonEmpty(raw.ID, uuid.NewString()),
			Name:            raw.Name,
			SearchQuery:     firstNonEmpty(raw.SearchQuery, raw.Name),
			ShoppingOptions: []models.ShoppingOption{},
		}
		for _, opt := range raw.ShoppingOptions {
			item.ShoppingOptions = append(item.ShoppingOptions, models.ShoppingOption{
				StoreName: firstNonEmpty(opt.StoreName, "Store"),
				URL:       opt.URL,
				Price:     opt.Price,
				Type:      opt.Type,
			})
		}
		card.MissingItems = append(card.MissingItems, item)
	}
	if len(card.MissingItems) == 0 {
		for _, raw := range payload.Shopping {
			item := models.MissingItem{
				ID:              uuid.NewString(),
				Name:            raw.Name,
				SearchQuery:     raw.Name,
				ShoppingOptions: []models.ShoppingOption{},
			}
			for _, link := range raw.Links {
				item.ShoppingOptions = append(item.ShoppingOptions, models.ShoppingOption{
					StoreName: firstNonEmpty(link.Label, "Store"),
					URL:       link.URL,
					Price:     raw.PriceRange,
				})
			}
			card.MissingItems = append(card.MissingItems, item)
		}
	}

	for _, raw := range outfit.PinterestLooks {
		card.PinterestLooks = append(card.PinterestLooks, models.PinterestLook{
			Title:           raw.Title,
			PreviewImageURL: firstNonEmpty(raw.PreviewImageURL, raw.ImageURL),
			PinterestURL:    firstNonEmpty(raw.PinterestURL, raw.Link),
		})
	}
	if len(card.PinterestLooks) == 0 {
		for _, raw := range payload.InspirationImages {
			card.PinterestLooks = append(card.PinterestLooks, models.PinterestLook{
				Title:           raw.Title,
				PreviewImageURL: raw.ImageURL,
				PinterestURL:    raw.Link,
			})
		}
	}

	// nothing the UI could show: no items, no shopping, no looks, no text
	if len(card.SelectedItemIDs) == 0 && len(card.MissingItems) == 0 &&
		len(card.PinterestLooks) == 0 && strings.TrimSpace(card.Reasoning) == "" {
		return nil
	}

	card.ID = firstNonEmpty(outfit.ID, uuid.NewString())
	return card
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

var labelCaser = cases.Title(language.English)

// ClothingClassification mirrors the response schema of the classification
// call: {category, color, season[], style[], description}.
type ClothingClassification struct {
	Category    string   `json:"category"`
	Color       string   `json:"color"`
	Season      []string `json:"season"`
	Style       []string `json:"style"`
	Description string   `json:"description"`
}

// ParseClassification decodes a classification response, defaulting each
// missing field instead of failing the item. The error is informational:
// even when it is non-nil the returned value is safe to store.
func ParseClassification(text string) (ClothingClassification, error) {
	var classification ClothingClassification
	err := json.Unmarshal([]byte(CleanModelJSON(text)), &classification)
	classification.ApplyDefaults()
	return classification, err
}

// ApplyDefaults fills the documented placeholders: "Unknown" for the
// scalar labels, empty arrays for the tag sets.
func (c *ClothingClassification) ApplyDefaults() {
	c.Category = strings.TrimSpace(c.Category)
	if c.Category == "" {
		c.Category = "Unknown"
	} else {
		c.Category = labelCaser.String(c.Category)
	}
	c.Color = strings.TrimSpace(c.Color)
	if c.Color == "" {
		c.Color = "Unknown"
	} else {
		c.Color = labelCaser.String(c.Color)
	}
	if c.Season == nil {
		c.Season = []string{}
	}
	if c.Style == nil {
		c.Style = []string{}
	}
}
