package models

// OutfitCardData is the single canonical shape every stylist payload is
// normalized into, whatever schema generation produced it. The three slices
// are always non-nil so rendering code never checks for absence.
type OutfitCardData struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// advisory only, clamped to 0..100
	MatchScore int `json:"matchScore"`

	// weak references into the wardrobe: resolved against the live
	// collection at render time, dangling ids kept in storage
	SelectedItemIDs []string `json:"selectedItemIds"`

	MissingItems   []MissingItem   `json:"missingItems"`
	PinterestLooks []PinterestLook `json:"pinterestLooks"`

	Reasoning string `json:"reasoning"`
}

type MissingItem struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	SearchQuery     string           `json:"searchQuery"`
	ShoppingOptions []ShoppingOption `json:"shoppingOptions"`
}

type ShoppingOption struct {
	StoreName string `json:"storeName"`
	URL       string `json:"url"`
	Price     string `json:"price"`
	Type      string `json:"type"`
}

type PinterestLook struct {
	Title           string `json:"title"`
	PreviewImageURL string `json:"previewImageUrl"`
	PinterestURL    string `json:"pinterestUrl"`
}

// OutfitFavorite holds a value-copy of a card: changing a favorite later
// never rewrites the chat message that produced it, and vice versa.
type OutfitFavorite struct {
	JsonModel
	OwnerID uint        `gorm:"index:idx_owner_outfit,unique" json:"-"`
	Owner   UserAccount `json:"-"`

	OutfitID string `gorm:"index:idx_owner_outfit,unique;size:64" json:"outfit_id"`
	CardJSON string `gorm:"type:text" json:"-"`
}

type GenerateOutfitIn struct {
	Occasion string `json:"occasion" validate:"required,max=300"`
	Notes    string `json:"notes" validate:"omitempty,max=1000"`
}

type OutfitCardOut struct {
	Card OutfitCardData `json:"card"`
	// SelectedItemIDs entries still present in the wardrobe
	ResolvedItems []ClothingItemOut `json:"resolved_items"`
}

type ToggleFavoriteIn struct {
	Card OutfitCardData `json:"card" validate:"required"`
}

type ToggleFavoriteOut struct {
	OutfitID  string `json:"outfit_id"`
	Favorited bool   `json:"favorited"`
}

type FavoritesListOut struct {
	Favorites []OutfitCardOut `json:"favorites"`
}
