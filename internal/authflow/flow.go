package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/npmart/storefront/internal/account"
	"github.com/npmart/storefront/internal/locale"
	"github.com/npmart/storefront/internal/otp"
	"github.com/npmart/storefront/internal/session"
)

// Accounts persists the records created by a commit.
type Accounts interface {
	CreateAccount(ctx context.Context, a account.Account) (account.Account, error)
	CreateSellerProfile(ctx context.Context, p account.SellerProfile) (account.SellerProfile, error)
}

// Deps are the collaborators shared by every flow.
type Deps struct {
	Accounts    Accounts
	Dispatcher  otp.Dispatcher
	Verifier    otp.Verifier
	Broadcaster session.Broadcaster
	Issuer      *session.Issuer
	Logger      *slog.Logger
}

type busyOp int

const (
	idle busyOp = iota
	dispatching
	verifying
	committing
)

func (b busyOp) err() error {
	switch b {
	case dispatching:
		return ErrDispatchInProgress
	case verifying:
		return ErrVerifyInProgress
	default:
		return ErrCommitInProgress
	}
}

// Flow is one phone registration attempt. It is safe for concurrent use;
// I/O runs outside the lock and a generation counter discards the outcome of
// work that was cancelled meanwhile.
type Flow struct {
	mu         sync.Mutex
	id         string
	sessionID  string
	locale     locale.Source
	deps       *Deps
	draft      Draft
	busy       busyOp
	generation uint64
	pending    *account.Account
	result     *Result

	// country is the context the code was sent under. It is fixed from a
	// successful SubmitPhone until the flow returns to the phone step.
	country locale.Country
	// verified is the code the verifier last accepted for this dispatch.
	verified string
}

func newFlow(id, sessionID string, src locale.Source, deps *Deps) *Flow {
	return &Flow{id: id, sessionID: sessionID, locale: src, deps: deps, draft: newDraft()}
}

// ID returns the flow identifier.
func (f *Flow) ID() string { return f.id }

// SessionID returns the session that owns the flow.
func (f *Flow) SessionID() string { return f.sessionID }

// SetPhone stores the digits of raw, truncated to the national number length
// of the active country.
func (f *Flow) SetPhone(raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(StepPhone); err != nil {
		return err
	}
	digits := onlyDigits(raw)
	if limit := f.locale.Active().NationalNumberLength; limit > 0 && len(digits) > limit {
		digits = digits[:limit]
	}
	if digits != f.draft.PhoneDigits {
		f.dropPending()
	}
	f.draft.PhoneDigits = digits
	return nil
}

// SetRole selects buyer or seller. Sellers need a seller-eligible country.
func (f *Flow) SetRole(role account.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(StepPhone); err != nil {
		return err
	}
	if !role.Valid() {
		return ErrInvalidRole
	}
	if role == account.RoleSeller && !locale.IsSellerEligible(f.locale.Active()) {
		return ErrSellerNotEligible
	}
	if role != f.draft.Role {
		f.dropPending()
	}
	f.draft.Role = role
	return nil
}

// SubmitPhone dispatches a code to the full number and moves to the OTP step.
func (f *Flow) SubmitPhone(ctx context.Context) error {
	f.mu.Lock()
	if err := f.editable(StepPhone); err != nil {
		f.mu.Unlock()
		return err
	}
	if len(f.draft.PhoneDigits) < MinPhoneDigits {
		f.mu.Unlock()
		return ErrPhoneTooShort
	}
	country := f.locale.Active()
	if f.draft.Role == account.RoleSeller && !locale.IsSellerEligible(country) {
		f.mu.Unlock()
		return ErrSellerNotEligible
	}
	if f.pending != nil && f.pending.CountryCode != string(country.Code) {
		f.dropPending()
	}
	phone := country.PhonePrefix + f.draft.PhoneDigits
	gen := f.generation
	f.busy = dispatching
	f.mu.Unlock()

	err := f.deps.Dispatcher.Dispatch(ctx, phone)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return ErrFlowCancelled
	}
	f.busy = idle
	if err != nil {
		f.deps.Logger.Warn("otp dispatch failed", slog.String("flow_id", f.id), slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	f.draft.Step = StepOTP
	f.country = country
	f.verified = ""
	f.deps.Logger.Info("otp dispatched", slog.String("flow_id", f.id), slog.String("country", string(country.Code)))
	return nil
}

// EnterOTP replaces the entered code. Values longer than six characters or
// containing non-digits are rejected.
func (f *Flow) EnterOTP(value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(StepOTP); err != nil {
		return err
	}
	if len(value) > OTPLength || onlyDigits(value) != value {
		return ErrInvalidOTP
	}
	f.draft.OTP = value
	return nil
}

// SubmitOTP checks the code with the verifier and moves to the profile step.
func (f *Flow) SubmitOTP(ctx context.Context) error {
	f.mu.Lock()
	if err := f.editable(StepOTP); err != nil {
		f.mu.Unlock()
		return err
	}
	if len(f.draft.OTP) != OTPLength {
		f.mu.Unlock()
		return ErrOTPIncomplete
	}
	if err := f.checkCountry(); err != nil {
		f.mu.Unlock()
		return err
	}
	code := f.draft.OTP
	if f.verified != "" && code == f.verified {
		f.draft.Step = StepProfile
		f.mu.Unlock()
		return nil
	}
	phone := f.country.PhonePrefix + f.draft.PhoneDigits
	gen := f.generation
	f.busy = verifying
	f.mu.Unlock()

	err := f.deps.Verifier.Verify(ctx, phone, code)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return ErrFlowCancelled
	}
	f.busy = idle
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOTPRejected, err)
	}
	f.verified = code
	f.draft.Step = StepProfile
	return nil
}

// SetProfile stores the profile fields. The business name is only kept when
// it is collected, that is for sellers in India.
func (f *Flow) SetProfile(p Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(StepProfile); err != nil {
		return err
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.BusinessName = strings.TrimSpace(p.BusinessName)
	if !f.requiresBusinessName() {
		p.BusinessName = ""
	}
	f.draft.Profile = p
	return nil
}

// Back moves one step backwards. Leaving the OTP step clears the code only.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy != idle {
		return f.busy.err()
	}
	switch f.draft.Step {
	case StepOTP:
		f.backToPhone()
	case StepProfile:
		f.draft.Step = StepOTP
	default:
		return ErrInvalidTransition
	}
	return nil
}

// Cancel discards the draft from any step, including after completion, and
// starts over at the phone step. Work already in flight settles unseen.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++
	f.busy = idle
	f.draft = newDraft()
	f.pending = nil
	f.result = nil
	f.country = locale.Country{}
	f.verified = ""
}

func (f *Flow) isBusy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy != idle
}

// CanSubmit reports whether the current step's submit guard holds.
func (f *Flow) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmit()
}

// Snapshot returns a copy of the flow state.
func (f *Flow) Snapshot() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	country := f.locale.Active()
	v := View{
		ID:                   f.id,
		Draft:                f.draft,
		CountryCode:          string(country.Code),
		PhonePrefix:          country.PhonePrefix,
		SellerEligible:       locale.IsSellerEligible(country),
		RequiresBusinessName: f.requiresBusinessName(),
		CanSubmit:            f.canSubmit(),
		Busy:                 f.busy != idle,
		DraftCountryCode:     string(f.country.Code),
	}
	switch {
	case f.result != nil:
		v.AccountID = f.result.Account.ID
	case f.pending != nil:
		v.AccountID = f.pending.ID
	}
	return v
}

// Result returns the outcome of a completed flow.
func (f *Flow) Result() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return Result{}, false
	}
	return *f.result, true
}

// SubmitProfile validates the profile and commits the registration: the
// account first, then the seller profile for Indian sellers. When only the
// seller profile fails the flow keeps the account and a later submit
// resumes from there.
func (f *Flow) SubmitProfile(ctx context.Context) (Result, error) {
	f.mu.Lock()
	if f.busy == committing {
		f.mu.Unlock()
		return Result{}, ErrCommitInProgress
	}
	if err := f.editable(StepProfile); err != nil {
		f.mu.Unlock()
		return Result{}, err
	}
	if err := f.checkCountry(); err != nil {
		f.mu.Unlock()
		return Result{}, err
	}
	if err := f.validateProfile(); err != nil {
		f.mu.Unlock()
		return Result{}, err
	}
	country := f.country
	draft := f.draft
	pending := f.pending
	gen := f.generation
	f.busy = committing
	f.mu.Unlock()

	res, err := f.commit(ctx, country, draft, pending)

	f.mu.Lock()
	if gen != f.generation {
		f.mu.Unlock()
		f.deps.Logger.Info("registration settled after cancel", slog.String("flow_id", f.id), slog.String("account_id", res.Account.ID))
		return Result{}, ErrFlowCancelled
	}
	f.busy = idle
	if err != nil {
		if res.Account.ID != "" {
			acc := res.Account
			f.pending = &acc
		}
		f.mu.Unlock()
		return Result{}, err
	}
	f.draft = newDraft()
	f.draft.Step = StepDone
	f.pending = nil
	f.country = locale.Country{}
	f.verified = ""
	f.mu.Unlock()

	f.signIn(ctx, &res, country)

	f.mu.Lock()
	if gen == f.generation {
		f.result = &res
	}
	f.mu.Unlock()
	return res, nil
}

func (f *Flow) commit(ctx context.Context, country locale.Country, draft Draft, pending *account.Account) (Result, error) {
	var res Result
	if pending != nil {
		res.Account = *pending
	} else {
		acc := account.Account{
			PhoneNumber: country.PhonePrefix + draft.PhoneDigits,
			CountryCode: string(country.Code),
			Name:        draft.Profile.Name,
			IsVerified:  true,
			Role:        draft.Role,
		}
		if draft.Profile.Email != "" {
			email := draft.Profile.Email
			acc.Email = &email
		}
		created, err := f.deps.Accounts.CreateAccount(ctx, acc)
		if err != nil {
			f.deps.Logger.Error("create account failed", slog.String("flow_id", f.id), slog.Any("error", err))
			return Result{}, fmt.Errorf("%w: %w", ErrCommitFailed, err)
		}
		res.Account = created
	}

	if draft.Role != account.RoleSeller || country.Code != locale.CodeIndia {
		return res, nil
	}

	seller, err := f.deps.Accounts.CreateSellerProfile(ctx, account.SellerProfile{
		AccountID:    res.Account.ID,
		BusinessName: draft.Profile.BusinessName,
		KYCStatus:    account.KYCPending,
	})
	if err != nil {
		f.deps.Logger.Error("create seller profile failed",
			slog.String("flow_id", f.id),
			slog.String("account_id", res.Account.ID),
			slog.Any("error", err),
		)
		return res, &PartialRegistrationError{AccountID: res.Account.ID, Err: err}
	}
	res.Seller = &seller
	return res, nil
}

// signIn issues the session token and announces the new identity. Failures
// are logged; the records are already committed.
func (f *Flow) signIn(ctx context.Context, res *Result, country locale.Country) {
	if f.deps.Issuer != nil {
		token, exp, err := f.deps.Issuer.Issue(session.Identity{
			AccountID:   res.Account.ID,
			Role:        string(res.Account.Role),
			CountryCode: string(country.Code),
			SessionID:   f.sessionID,
		})
		if err != nil {
			f.deps.Logger.Error("issue session token", slog.String("account_id", res.Account.ID), slog.Any("error", err))
		} else {
			res.Token, res.ExpiresAt = token, exp
		}
	}
	if f.deps.Broadcaster != nil {
		ev := session.Event{
			Type:        session.EventSignedIn,
			AccountID:   res.Account.ID,
			SessionID:   f.sessionID,
			Role:        string(res.Account.Role),
			CountryCode: string(country.Code),
			At:          time.Now().UTC(),
		}
		if err := f.deps.Broadcaster.Publish(ctx, ev); err != nil {
			f.deps.Logger.Warn("publish session event", slog.String("account_id", res.Account.ID), slog.Any("error", err))
		}
	}
	f.deps.Logger.Info("registration completed",
		slog.String("flow_id", f.id),
		slog.String("account_id", res.Account.ID),
		slog.String("role", string(res.Account.Role)),
		slog.String("country", string(country.Code)),
	)
}

func (f *Flow) editable(step Step) error {
	if f.busy != idle {
		return f.busy.err()
	}
	if f.draft.Step != step {
		return fmt.Errorf("%w: flow is at %s", ErrInvalidTransition, f.draft.Step)
	}
	return nil
}

// checkCountry sends the flow back to the phone step when the active
// country no longer matches the one the code was sent under.
func (f *Flow) checkCountry() error {
	if active := f.locale.Active(); active.Code != f.country.Code {
		f.deps.Logger.Info("country changed mid-flow",
			slog.String("flow_id", f.id),
			slog.String("from", string(f.country.Code)),
			slog.String("to", string(active.Code)),
		)
		f.backToPhone()
		return ErrCountryChanged
	}
	return nil
}

// backToPhone returns to the phone step keeping the digits, role and profile.
func (f *Flow) backToPhone() {
	f.draft.OTP = ""
	f.draft.Step = StepPhone
	f.country = locale.Country{}
	f.verified = ""
}

// draftCountry is the country the draft commits under: the one the code was
// sent under once the phone step is behind, the active one before that.
func (f *Flow) draftCountry() locale.Country {
	if !f.country.IsZero() {
		return f.country
	}
	return f.locale.Active()
}

func (f *Flow) requiresBusinessName() bool {
	return f.draft.Role == account.RoleSeller && f.draftCountry().Code == locale.CodeIndia
}

func (f *Flow) validateProfile() error {
	if f.draft.Profile.Name == "" {
		return ErrNameRequired
	}
	if f.requiresBusinessName() && f.draft.Profile.BusinessName == "" {
		return ErrBusinessNameRequired
	}
	return nil
}

func (f *Flow) canSubmit() bool {
	if f.busy != idle {
		return false
	}
	switch f.draft.Step {
	case StepPhone:
		if f.draft.Role == account.RoleSeller && !locale.IsSellerEligible(f.locale.Active()) {
			return false
		}
		return len(f.draft.PhoneDigits) >= MinPhoneDigits
	case StepOTP:
		return len(f.draft.OTP) == OTPLength
	case StepProfile:
		return f.validateProfile() == nil
	default:
		return false
	}
}

// dropPending forgets an account created by an earlier partial commit once
// the identity it was created for is edited.
func (f *Flow) dropPending() {
	if f.pending == nil {
		return
	}
	f.deps.Logger.Warn("abandoning partially registered account",
		slog.String("flow_id", f.id),
		slog.String("account_id", f.pending.ID),
	)
	f.pending = nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
