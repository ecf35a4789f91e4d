package models

import (
	"github.com/lib/pq"
)

// ClothingItem is one garment in the user's wardrobe. Items are immutable
// after creation: classification happens once, removal is explicit.
type ClothingItem struct {
	// client-visible string id, a UUID unless an import supplied one
	ItemID  string `gorm:"uniqueIndex;size:64" json:"id"`
	DBID    uint   `gorm:"primarykey;column:id" json:"-"`
	OwnerID uint   `gorm:"index" json:"-"`

	// R2 object key of the uploaded photo
	ImageKey string `json:"-"`

	Category    string         `json:"category"` // "Unknown" when classification failed
	Color       string         `json:"color"`    // "Unknown" when classification failed
	Season      pq.StringArray `gorm:"type:text[]" json:"season"`
	Style       pq.StringArray `gorm:"type:text[]" json:"style"`
	Description *string        `gorm:"type:text" json:"description"`

	CreatedAtMs int64 `gorm:"autoCreateTime:milli" json:"created_at"`
}

// WardrobeUploadBatch tracks one multi-file upload through classification.
// Processed counts every file, failed or not, so progress always ends at
// total/total.
type WardrobeUploadBatch struct {
	JsonModel
	OwnerID uint        `gorm:"index" json:"-"`
	Owner   UserAccount `json:"-"`

	FileKeys    pq.StringArray `gorm:"type:text[]" json:"-"`
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	FailedFiles pq.StringArray `gorm:"type:text[]" json:"failed_files"`
	Status      string         `json:"status"` // pending, processing, completed, cancelled

	LLMModel     *string `json:"-"`
	ErrorMessage *string `json:"error_message"`
}

type ClothingItemOut struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Color       string   `json:"color"`
	Season      []string `json:"season"`
	Style       []string `json:"style"`
	Description *string  `json:"description"`
	Uri         *string  `json:"uri,omitempty"`
	CreatedAt   int64    `json:"created_at"`
}

type WardrobeListOut struct {
	Items []ClothingItemOut `json:"items"`
}

type CreateClothingIn struct {
	FileName    *string `json:"file_name" validate:"required,max=200"`
	Category    string  `json:"category" validate:"omitempty,max=100"`
	Color       string  `json:"color" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

type ClothingCreatedOut struct {
	Item          ClothingItemOut `json:"item"`
	FileUploadUrl string          `json:"file_upload_url"`
}

type UploadBatchIn struct {
	FileNames []string `json:"file_names" validate:"required,min=1,max=10,dive,max=200"`
}

type UploadBatchOut struct {
	BatchID       uint              `json:"batch_id"`
	Status        string            `json:"status"`
	UploadTargets map[string]string `json:"upload_targets"` // file name -> presigned PUT url
}

type UploadBatchProgressOut struct {
	BatchID     uint     `json:"batch_id"`
	Status      string   `json:"status"`
	Processed   int      `json:"processed"`
	Total       int      `json:"total"`
	FailedFiles []string `json:"failed_files"`
}

// ImportedClothingItem is one entry of the legacy client-side wardrobe
// document. Everything is optional; the store repairs what is missing.
type ImportedClothingItem struct {
	ID          string   `json:"id"`
	Image       string   `json:"image"`
	Category    string   `json:"category"`
	Color       string   `json:"color"`
	Season      []string `json:"season"`
	Style       []string `json:"style"`
	Description *string  `json:"description"`
}
