package authflow

import (
	"time"

	"github.com/npmart/storefront/internal/account"
)

const (
	// MinPhoneDigits is the shortest national number accepted at phone submit.
	MinPhoneDigits = 10
	// OTPLength is the exact length of a verification code.
	OTPLength = 6
)

// Step is a state of the registration flow.
type Step string

const (
	StepPhone   Step = "phone"
	StepOTP     Step = "otp"
	StepProfile Step = "profile"
	StepDone    Step = "done"
)

// Profile is collected in the last step.
type Profile struct {
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
}

// Draft is the uncommitted state of one registration attempt.
type Draft struct {
	Step        Step         `json:"step"`
	PhoneDigits string       `json:"phone_digits"`
	Role        account.Role `json:"role"`
	OTP         string       `json:"otp"`
	Profile     Profile      `json:"profile"`
}

func newDraft() Draft {
	return Draft{Step: StepPhone, Role: account.RoleBuyer}
}

// Result is what a successful commit produced.
type Result struct {
	Account   account.Account        `json:"account"`
	Seller    *account.SellerProfile `json:"seller,omitempty"`
	Token     string                 `json:"token,omitempty"`
	ExpiresAt time.Time              `json:"expires_at,omitempty"`
}

// View is a read-only snapshot of a flow for hosts.
type View struct {
	ID                   string `json:"id"`
	Draft                Draft  `json:"draft"`
	CountryCode          string `json:"country_code"`
	PhonePrefix          string `json:"phone_prefix"`
	SellerEligible       bool   `json:"seller_eligible"`
	RequiresBusinessName bool   `json:"requires_business_name"`
	CanSubmit            bool   `json:"can_submit"`
	Busy                 bool   `json:"busy"`
	AccountID            string `json:"account_id,omitempty"`
	DraftCountryCode     string `json:"draft_country_code,omitempty"`
}
