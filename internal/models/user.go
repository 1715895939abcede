package models

import "time"

// User mirrors the identity provider's user record; the ID is the provider's user id.
type User struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(128);index" json:"username"`
	Name      string    `gorm:"type:varchar(256)" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName prefers the username and falls back to the full name, then the id.
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return u.Username
	case u.Name != "":
		return u.Name
	default:
		return u.ID
	}
}

// Organization mirrors the identity provider's organization record.
type Organization struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(256);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
