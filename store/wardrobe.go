package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"stylrapi/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrItemNotFound = errors.New("clothing item not found")

// ErrMalformedImport means the import document could not be parsed at all.
// Individually broken entries inside a parseable document never fail the
// import, they get repaired instead.
var ErrMalformedImport = errors.New("wardrobe import document is not valid JSON")

// WardrobeStore owns all reads and writes of a user's clothing collection
// and favorites. Nothing else touches those tables.
type WardrobeStore struct {
	DB *gorm.DB
}

func NewWardrobeStore(db *gorm.DB) *WardrobeStore {
	return &WardrobeStore{DB: db}
}

// Load returns the collection newest first. Always returns a non-nil slice.
func (s *WardrobeStore) Load(ownerID uint) ([]models.ClothingItem, error) {
	items := []models.ClothingItem{}
	result := s.DB.Where("owner_id = ?", ownerID).Order("created_at_ms desc").Find(&items)
	if result.Error != nil {
		return nil, result.Error
	}
	return items, nil
}

// Add inserts one item, assigning the client-visible id and the label
// placeholders when they are missing.
func (s *WardrobeStore) Add(ownerID uint, item *models.ClothingItem) error {
	item.OwnerID = ownerID
	repairItem(item)
	return s.DB.Create(item).Error
}

// Remove deletes by client-visible id. An id that is already gone is a
// no-op, deleting twice looks the same as deleting once.
func (s *WardrobeStore) Remove(ownerID uint, itemID string) error {
	return s.DB.Where("owner_id = ? and item_id = ?", ownerID, itemID).Delete(&models.ClothingItem{}).Error
}

// Get loads one item by client-visible id.
func (s *WardrobeStore) Get(ownerID uint, itemID string) (*models.ClothingItem, error) {
	var item models.ClothingItem
	result := s.DB.Where("owner_id = ? and item_id = ?", ownerID, itemID).First(&item)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &item, nil
}

// importDocument accepts both layouts the legacy client exported: a bare
// array of items or an object wrapping it under "items".
type importDocument struct {
	Items []models.ImportedClothingItem `json:"items"`
}

// Import ingests a legacy wardrobe export. Every entry is repaired field
// by field: missing ids are minted, missing labels become "Unknown", nil
// tag sets become empty. Entries whose id already exists are skipped, a
// repaired entry is never dropped. Returns the number of items stored.
func (s *WardrobeStore) Import(ownerID uint, raw []byte) (int, error) {
	var entries []models.ImportedClothingItem
	if err := json.Unmarshal(raw, &entries); err != nil {
		var doc importDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformedImport, err)
		}
		entries = doc.Items
	}

	imported := 0
	for _, entry := range entries {
		item := models.ClothingItem{
			ItemID:      entry.ID,
			ImageKey:    entry.Image,
			Category:    entry.Category,
			Color:       entry.Color,
			Season:      pq.StringArray(entry.Season),
			Style:       pq.StringArray(entry.Style),
			Description: entry.Description,
			OwnerID:     ownerID,
		}
		repairItem(&item)

		result := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}},
			DoNothing: true,
		}).Create(&item)
		if result.Error != nil {
			return imported, result.Error
		}
		imported += int(result.RowsAffected)
	}
	return imported, nil
}

func repairItem(item *models.ClothingItem) {
	if strings.TrimSpace(item.ItemID) == "" {
		item.ItemID = uuid.NewString()
	}
	if strings.TrimSpace(item.Category) == "" {
		item.Category = "Unknown"
	}
	if strings.TrimSpace(item.Color) == "" {
		item.Color = "Unknown"
	}
	if item.Season == nil {
		item.Season = pq.StringArray{}
	}
	if item.Style == nil {
		item.Style = pq.StringArray{}
	}
}

// ResolveItems maps card item references onto the live collection,
// preserving order and silently dropping ids that no longer resolve. The
// references themselves stay in storage untouched.
func (s *WardrobeStore) ResolveItems(ownerID uint, itemIDs []string) ([]models.ClothingItem, error) {
	resolved := []models.ClothingItem{}
	if len(itemIDs) == 0 {
		return resolved, nil
	}
	var items []models.ClothingItem
	result := s.DB.Where("owner_id = ? and item_id in ?", ownerID, itemIDs).Find(&items)
	if result.Error != nil {
		return nil, result.Error
	}
	byID := make(map[string]models.ClothingItem, len(items))
	for _, item := range items {
		byID[item.ItemID] = item
	}
	for _, id := range itemIDs {
		if item, ok := byID[id]; ok {
			resolved = append(resolved, item)
		}
	}
	return resolved, nil
}

// InventoryJSON serializes the collection the way stylist prompts expect
// it: id plus the classification labels, no image keys.
func (s *WardrobeStore) InventoryJSON(ownerID uint) (string, error) {
	items, err := s.Load(ownerID)
	if err != nil {
		return "", err
	}
	type inventoryEntry struct {
		ID          string   `json:"id"`
		Category    string   `json:"category"`
		Color       string   `json:"color"`
		Season      []string `json:"season"`
		Style       []string `json:"style"`
		Description *string  `json:"description,omitempty"`
	}
	entries := make([]inventoryEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, inventoryEntry{
			ID:          item.ItemID,
			Category:    item.Category,
			Color:       item.Color,
			Season:      item.Season,
			Style:       item.Style,
			Description: item.Description,
		})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ToggleFavorite stores or removes a value-copy of the card, keyed by its
// outfit id. Returns whether the card is favorited after the call.
func (s *WardrobeStore) ToggleFavorite(ownerID uint, card models.OutfitCardData) (bool, error) {
	result := s.DB.Where("owner_id = ? and outfit_id = ?", ownerID, card.ID).Delete(&models.OutfitFavorite{})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return false, nil
	}

	cardJSON, err := json.Marshal(card)
	if err != nil {
		return false, err
	}
	favorite := models.OutfitFavorite{
		OwnerID:  ownerID,
		OutfitID: card.ID,
		CardJSON: string(cardJSON),
	}
	if err := s.DB.Create(&favorite).Error; err != nil {
		return false, err
	}
	return true, nil
}

// Favorites returns the stored cards newest first. Rows whose snapshot no
// longer parses are skipped rather than failing the listing.
func (s *WardrobeStore) Favorites(ownerID uint) ([]models.OutfitCardData, error) {
	var rows []models.OutfitFavorite
	result := s.DB.Where("owner_id = ?", ownerID).Order("created_at desc").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	cards := []models.OutfitCardData{}
	for _, row := range rows {
		var card models.OutfitCardData
		if err := json.Unmarshal([]byte(row.CardJSON), &card); err != nil {
			fmt.Printf("[Favorite: %v] skipping unreadable card snapshot: %v\n", row.ID, err)
			continue
		}
		ensureCardSlices(&card)
		cards = append(cards, card)
	}
	return cards, nil
}

// ItemCount is used for the profile summary.
func (s *WardrobeStore) ItemCount(ownerID uint) (int64, error) {
	var count int64
	result := s.DB.Model(&models.ClothingItem{}).Where("owner_id = ?", ownerID).Count(&count)
	return count, result.Error
}

func ensureCardSlices(card *models.OutfitCardData) {
	if card.SelectedItemIDs == nil {
		card.SelectedItemIDs = []string{}
	}
	if card.MissingItems == nil {
		card.MissingItems = []models.MissingItem{}
	}
	if card.PinterestLooks == nil {
		card.PinterestLooks = []models.PinterestLook{}
	}
	for i := range card.MissingItems {
		if card.MissingItems[i].ShoppingOptions == nil {
			card.MissingItems[i].ShoppingOptions = []models.ShoppingOption{}
		}
	}
}
