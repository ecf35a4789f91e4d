package models

import "time"

type UserAccount struct {
	JsonModel
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"unique"`
	Banned   bool   `gorm:"default:false" json:"-"`
	LastIp   string `json:"-"`
	Status   string `json:"-"` // "STARTED_AUTH", "FINISHED_AUTH"
	GoogleID string `json:"-"`

	UTMSource string   `json:"utm_source"`
	Platform  Platform `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`

	ConfirmedDeleteDate *time.Time `json:"-"`

	ReceiveNotifications bool `gorm:"default:true" json:"receive_notifications"`

	// user app image/avatar from the OAuth profile
	AvatarURL string `json:"avatar_url"`

	EnforcedDailyUploadLimit *int32 `json:"-"`
	EnforcedLLMModel         *int32 `json:"-"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint
	UserAccount   UserAccount `json:"user_account"`
	Platform      Platform    `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Token         string      `json:"token"`
	Active        bool        `gorm:"default:false" json:"-"`
}

type UserPushIn struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,platform"`
}

type UserSettingsIn struct {
	ReceiveNotifications bool `json:"receive_notifications"`
}

type UserMeInfoOut struct {
	Id                   string `json:"id"`
	Name                 string `json:"name"`
	Email                string `json:"email"`
	AvatarURL            string `json:"avatar_url"`
	ReceiveNotifications bool   `json:"receive_notifications"`
	WardrobeItemCount    int64  `json:"wardrobe_item_count"`
}
