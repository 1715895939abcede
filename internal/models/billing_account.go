package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillingAccount links a user, or an organization, to its customer record at
// the payment provider. Each owner has at most one account.
type BillingAccount struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	// UserID is the owner outside an org, or the member who opened the org account.
	UserID             string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	OrgID              *string   `gorm:"type:varchar(64);index" json:"org_id,omitempty"`
	Owner              string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"-"`
	CustomerID         string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"-"`
	SubscriptionItemID string    `gorm:"type:varchar(128)" json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (a *BillingAccount) BeforeCreate(*gorm.DB) error { assignID(&a.ID); return nil }

// OwnerKey names the billing owner: the organization when there is one,
// the user otherwise.
func OwnerKey(userID, orgID string) string {
	if orgID != "" {
		return "org:" + orgID
	}
	return "user:" + userID
}
