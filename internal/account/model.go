package account

import "time"

// Role is the kind of account created by registration.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// KYCStatus tracks seller verification. Only the back office moves it past pending.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

// Account is a registered storefront user.
type Account struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	CountryCode string    `json:"country_code"`
	Name        string    `json:"name"`
	Email       *string   `json:"email"`
	IsVerified  bool      `json:"is_verified"`
	Role        Role      `json:"user_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SellerProfile holds the business details of an Indian seller account.
type SellerProfile struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"user_id"`
	BusinessName string    `json:"business_name"`
	KYCStatus    KYCStatus `json:"kyc_status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
