package wallet

import "time"

// StoredCard is a tokenized card in the shopper's wallet. Only the
// provider registration token and display data are kept, never card
// numbers.
type StoredCard struct {
	ID         string `gorm:"type:char(36);primaryKey"`
	CustomerID string `gorm:"type:varchar(64);not null;index:ix_stored_cards_customer_id"`

	Holder       string `gorm:"type:varchar(100)"`
	MaskedNumber string `gorm:"type:varchar(32)"`
	ExpiryMonth  string `gorm:"type:varchar(2)"`
	ExpiryYear   string `gorm:"type:varchar(4)"`
	Brand        string `gorm:"type:varchar(32)"`

	RegistrationID string `gorm:"type:varchar(64);not null;uniqueIndex:ux_stored_cards_registration"`

	CreatedAt time.Time `gorm:"not null"`
}

func (StoredCard) TableName() string { return "stored_cards" }
