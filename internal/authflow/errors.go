package authflow

import (
	"errors"
	"fmt"
)

// Validation failures block a transition and leave the flow untouched.
var (
	ErrValidation           = errors.New("validation failed")
	ErrPhoneTooShort        = fmt.Errorf("%w: phone number needs at least %d digits", ErrValidation, MinPhoneDigits)
	ErrInvalidOTP           = fmt.Errorf("%w: otp must be at most %d digits", ErrValidation, OTPLength)
	ErrOTPIncomplete        = fmt.Errorf("%w: otp must have exactly %d digits", ErrValidation, OTPLength)
	ErrOTPRejected          = fmt.Errorf("%w: otp was not accepted", ErrValidation)
	ErrNameRequired         = fmt.Errorf("%w: name is required", ErrValidation)
	ErrBusinessNameRequired = fmt.Errorf("%w: business name is required", ErrValidation)
	ErrInvalidRole          = fmt.Errorf("%w: unknown role", ErrValidation)
	ErrSellerNotEligible    = fmt.Errorf("%w: seller signup is not available in this country", ErrValidation)
	ErrCountryChanged       = fmt.Errorf("%w: country changed since the code was sent, submit the phone number again", ErrValidation)
)

var (
	ErrInvalidTransition = errors.New("action not allowed in current step")
	ErrFlowNotFound      = errors.New("auth flow not found")
	ErrFlowCancelled     = errors.New("auth flow was cancelled")
	ErrDispatchFailed    = errors.New("otp dispatch failed")
	ErrCommitFailed      = errors.New("registration failed")

	ErrBusy               = errors.New("auth flow busy")
	ErrCommitInProgress   = fmt.Errorf("%w: registration in progress", ErrBusy)
	ErrDispatchInProgress = fmt.Errorf("%w: otp dispatch in progress", ErrBusy)
	ErrVerifyInProgress   = fmt.Errorf("%w: otp verification in progress", ErrBusy)

	// ErrPartialRegistration matches *PartialRegistrationError.
	ErrPartialRegistration = errors.New("registration partially completed")
)

// PartialRegistrationError reports that the account exists but its seller
// profile could not be created. Submitting the profile again retries only
// the seller profile.
type PartialRegistrationError struct {
	AccountID string
	Err       error
}

func (e *PartialRegistrationError) Error() string {
	return fmt.Sprintf("%s: account %s created, seller profile failed: %v", ErrPartialRegistration, e.AccountID, e.Err)
}

func (e *PartialRegistrationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPartialRegistration) hold.
func (e *PartialRegistrationError) Is(target error) bool {
	return target == ErrPartialRegistration
}
