package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/npmart/storefront/internal/records"
)

const (
	CollectionUsers   = "users"
	CollectionSellers = "sellers"
)

// ErrNotFound is returned when no matching record exists.
var ErrNotFound = errors.New("account not found")

// Repository maps accounts and seller profiles onto the record store.
type Repository struct {
	store records.Store
	now   func() time.Time
}

// NewRepository builds a repository over store.
func NewRepository(store records.Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// CreateAccount persists a new account, assigning an id and timestamps.
func (r *Repository) CreateAccount(ctx context.Context, a Account) (Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := r.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	if _, err := r.store.Create(ctx, CollectionUsers, accountRecord(a)); err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

// CreateSellerProfile persists a seller profile for an existing account.
func (r *Repository) CreateSellerProfile(ctx context.Context, p SellerProfile) (SellerProfile, error) {
	if p.AccountID == "" {
		return SellerProfile{}, fmt.Errorf("create seller profile: account id is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.KYCStatus == "" {
		p.KYCStatus = KYCPending
	}
	now := r.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	if _, err := r.store.Create(ctx, CollectionSellers, sellerRecord(p)); err != nil {
		return SellerProfile{}, fmt.Errorf("create seller profile: %w", err)
	}
	return p, nil
}

// GetAccount fetches an account by id.
func (r *Repository) GetAccount(ctx context.Context, id string) (Account, error) {
	recs, err := r.store.List(ctx, CollectionUsers, records.Filter{records.FieldID: id}, records.Order{}, 1)
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	if len(recs) == 0 {
		return Account{}, ErrNotFound
	}
	return accountFromRecord(recs[0]), nil
}

// SellerProfileFor returns the most recent seller profile of an account.
func (r *Repository) SellerProfileFor(ctx context.Context, accountID string) (SellerProfile, error) {
	recs, err := r.store.List(ctx, CollectionSellers,
		records.Filter{"user_id": accountID},
		records.Order{Field: records.FieldCreatedAt, Desc: true}, 1)
	if err != nil {
		return SellerProfile{}, fmt.Errorf("get seller profile: %w", err)
	}
	if len(recs) == 0 {
		return SellerProfile{}, ErrNotFound
	}
	return sellerFromRecord(recs[0]), nil
}

func accountRecord(a Account) records.Record {
	var email any
	if a.Email != nil {
		email = *a.Email
	}
	return records.Record{
		"id":           a.ID,
		"phone_number": a.PhoneNumber,
		"country_code": a.CountryCode,
		"name":         a.Name,
		"email":        email,
		"is_verified":  a.IsVerified,
		"user_type":    string(a.Role),
		"created_at":   formatTime(a.CreatedAt),
		"updated_at":   formatTime(a.UpdatedAt),
	}
}

func accountFromRecord(rec records.Record) Account {
	a := Account{
		ID:          rec.ID(),
		PhoneNumber: rec.String("phone_number"),
		CountryCode: rec.String("country_code"),
		Name:        rec.String("name"),
		Role:        Role(rec.String("user_type")),
		CreatedAt:   parseTime(rec.String("created_at")),
		UpdatedAt:   parseTime(rec.String("updated_at")),
	}
	if email := rec.String("email"); email != "" {
		a.Email = &email
	}
	a.IsVerified, _ = rec["is_verified"].(bool)
	return a
}

func sellerRecord(p SellerProfile) records.Record {
	return records.Record{
		"id":            p.ID,
		"user_id":       p.AccountID,
		"business_name": p.BusinessName,
		"kyc_status":    string(p.KYCStatus),
		"created_at":    formatTime(p.CreatedAt),
		"updated_at":    formatTime(p.UpdatedAt),
	}
}

func sellerFromRecord(rec records.Record) SellerProfile {
	return SellerProfile{
		ID:           rec.ID(),
		AccountID:    rec.String("user_id"),
		BusinessName: rec.String("business_name"),
		KYCStatus:    KYCStatus(rec.String("kyc_status")),
		CreatedAt:    parseTime(rec.String("created_at")),
		UpdatedAt:    parseTime(rec.String("updated_at")),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
