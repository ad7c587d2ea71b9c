package wallet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
)

var (
	ErrRegistrationFailed = errors.New("card registration failed")
	ErrNoCardInResponse   = errors.New("response carries no card data")
)

// Gateway is the slice of the ACI client used for card tokenization.
type Gateway interface {
	PrepareRegistration(ctx context.Context, cust aci.Customer) aci.CallResult
	RegistrationStatus(ctx context.Context, resourcePath string) aci.CallResult
}

// Service manages the shopper's stored-card wallet.
type Service struct {
	db     *gorm.DB
	gw     Gateway
	logger *slog.Logger
}

func NewService(db *gorm.DB, gw Gateway) *Service {
	return &Service{db: db, gw: gw, logger: slog.Default()}
}

func (s *Service) SetLogger(l *slog.Logger) { s.logger = l }

// RegistrationIDs returns the shopper's saved-card tokens for checkout
// payloads.
func (s *Service) RegistrationIDs(ctx context.Context, customerID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&StoredCard{}).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Pluck("registration_id", &ids).Error
	return ids, err
}

// List returns the shopper's stored cards, oldest first.
func (s *Service) List(ctx context.Context, customerID string) ([]StoredCard, error) {
	var cards []StoredCard
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&cards).Error
	return cards, err
}

// Delete removes a stored card. The provider-side registration is left to
// expire; only the local token is dropped.
func (s *Service) Delete(ctx context.Context, customerID, cardID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND customer_id = ?", cardID, customerID).
		Delete(&StoredCard{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SaveFromResponse stores the card tokenized in a provider response.
// Saving the same registration twice returns the existing card.
func (s *Service) SaveFromResponse(ctx context.Context, customerID string, resp *aci.PaymentResponse) (StoredCard, error) {
	if resp.Card == nil {
		return StoredCard{}, ErrNoCardInResponse
	}
	token := resp.RegistrationID
	if token == "" {
		token = resp.ID
	}

	var existing StoredCard
	err := s.db.WithContext(ctx).First(&existing, "registration_id = ?", token).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return StoredCard{}, err
	}

	card := StoredCard{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		Holder:         resp.Card.Holder,
		MaskedNumber:   "************" + resp.Card.Last4Digits,
		ExpiryMonth:    resp.Card.ExpiryMonth,
		ExpiryYear:     resp.Card.ExpiryYear,
		Brand:          resp.PaymentBrand,
		RegistrationID: token,
		CreatedAt:      time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&card).Error; err != nil {
		return StoredCard{}, err
	}
	return card, nil
}

// BeginRegistration opens a standalone tokenization session and returns
// its checkout ID for the registration widget.
func (s *Service) BeginRegistration(ctx context.Context, cust aci.Customer) (string, error) {
	res := s.gw.PrepareRegistration(ctx, cust)
	if !res.OK || res.Object.ID == "" {
		s.logger.Error("prepare registration failed", "customer_id", cust.ID, "err", res.ErrorMessage)
		return "", ErrRegistrationFailed
	}
	return res.Object.ID, nil
}

// CompleteRegistration fetches the tokenization outcome after the shopper
// returns from the registration widget and stores the card on success.
func (s *Service) CompleteRegistration(ctx context.Context, customerID, resourcePath string) (StoredCard, error) {
	res := s.gw.RegistrationStatus(ctx, resourcePath)
	if !res.OK {
		return StoredCard{}, ErrRegistrationFailed
	}
	if aci.IsRejected(res.Object) {
		return StoredCard{}, ErrRegistrationFailed
	}
	return s.SaveFromResponse(ctx, customerID, res.Object)
}
