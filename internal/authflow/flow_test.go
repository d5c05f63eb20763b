package authflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npmart/storefront/internal/account"
	"github.com/npmart/storefront/internal/locale"
	"github.com/npmart/storefront/internal/logging"
	"github.com/npmart/storefront/internal/otp"
	"github.com/npmart/storefront/internal/records"
	"github.com/npmart/storefront/internal/session"
)

type fixture struct {
	store       records.Store
	accounts    *mockAccounts
	dispatcher  *mockDispatcher
	verifier    *mockVerifier
	broadcaster session.Broadcaster
	issuer      *session.Issuer
	registry    *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := records.NewMemoryStore()
	fx := &fixture{
		store:       store,
		accounts:    newMockAccounts(store),
		dispatcher:  &mockDispatcher{},
		verifier:    &mockVerifier{},
		broadcaster: session.NewMemoryBroadcaster(),
		issuer:      session.NewIssuer("test-secret", time.Hour),
	}
	fx.registry = NewRegistry(Deps{
		Accounts:    fx.accounts,
		Dispatcher:  fx.dispatcher,
		Verifier:    fx.verifier,
		Broadcaster: fx.broadcaster,
		Issuer:      fx.issuer,
		Logger:      logging.Discard(),
	})
	return fx
}

func (fx *fixture) list(t *testing.T, collection string) []records.Record {
	t.Helper()
	recs, err := fx.store.List(context.Background(), collection, nil, records.Order{}, 0)
	require.NoError(t, err)
	return recs
}

// toProfile drives a flow through the phone and OTP steps.
func toProfile(t *testing.T, f *Flow, phone string, role account.Role) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.SetPhone(phone))
	require.NoError(t, f.SetRole(role))
	require.NoError(t, f.SubmitPhone(ctx))
	require.NoError(t, f.EnterOTP("000000"))
	require.NoError(t, f.SubmitOTP(ctx))
	require.Equal(t, StepProfile, f.Snapshot().Draft.Step)
}

func TestIndiaSellerRegistration(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	events, release := fx.broadcaster.Subscribe(ctx)
	defer release()

	f := fx.registry.Start("s1", localeOf(locale.CodeIndia))
	require.NoError(t, f.SetRole(account.RoleSeller))
	require.NoError(t, f.SetPhone("9876543210"))
	require.True(t, f.CanSubmit())

	require.NoError(t, f.SubmitPhone(ctx))
	assert.Equal(t, StepOTP, f.Snapshot().Draft.Step)
	assert.Equal(t, []string{"+919876543210"}, fx.dispatcher.sent())

	require.NoError(t, f.EnterOTP("000000"))
	require.NoError(t, f.SubmitOTP(ctx))
	assert.Equal(t, StepProfile, f.Snapshot().Draft.Step)
	assert.True(t, f.Snapshot().RequiresBusinessName)

	require.NoError(t, f.SetProfile(Profile{Name: "Asha", BusinessName: "Asha Traders"}))
	res, err := f.SubmitProfile(ctx)
	require.NoError(t, err)

	users := fx.list(t, account.CollectionUsers)
	require.Len(t, users, 1)
	assert.Equal(t, "seller", users[0]["user_type"])
	assert.Equal(t, "IN", users[0]["country_code"])
	assert.Equal(t, "+919876543210", users[0]["phone_number"])
	assert.Equal(t, true, users[0]["is_verified"])
	assert.Nil(t, users[0]["email"])

	sellers := fx.list(t, account.CollectionSellers)
	require.Len(t, sellers, 1)
	assert.Equal(t, "pending", sellers[0]["kyc_status"])
	assert.Equal(t, "Asha Traders", sellers[0]["business_name"])
	assert.Equal(t, users[0].ID(), sellers[0]["user_id"])

	require.NotNil(t, res.Seller)
	assert.Equal(t, res.Account.ID, res.Seller.AccountID)

	claims, err := fx.issuer.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, claims.AccountID())

	select {
	case ev := <-events:
		assert.Equal(t, session.EventSignedIn, ev.Type)
		assert.Equal(t, res.Account.ID, ev.AccountID)
	case <-time.After(time.Second):
		t.Fatal("expected a signed_in event")
	}

	view := f.Snapshot()
	assert.Equal(t, StepDone, view.Draft.Step)
	assert.Empty(t, view.Draft.PhoneDigits)
	assert.Equal(t, res.Account.ID, view.AccountID)
}

func TestNepalBuyerRegistration(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f := fx.registry.Start("s1", localeOf(locale.CodeNepal))
	assert.ErrorIs(t, f.SetRole(account.RoleSeller), ErrSellerNotEligible)
	assert.Equal(t, account.RoleBuyer, f.Snapshot().Draft.Role)
	assert.False(t, f.Snapshot().SellerEligible)

	require.NoError(t, f.SetPhone("9812345678"))
	require.NoError(t, f.SubmitPhone(ctx))
	assert.Equal(t, []string{"+9779812345678"}, fx.dispatcher.sent())

	require.NoError(t, f.EnterOTP("123456"))
	require.NoError(t, f.SubmitOTP(ctx))
	assert.False(t, f.Snapshot().RequiresBusinessName)

	require.NoError(t, f.SetProfile(Profile{Name: "Bikash", BusinessName: "ignored"}))
	assert.Empty(t, f.Snapshot().Draft.Profile.BusinessName)

	res, err := f.SubmitProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, res.Seller)
	assert.Equal(t, account.RoleBuyer, res.Account.Role)
	assert.Equal(t, "NP", res.Account.CountryCode)

	assert.Len(t, fx.list(t, account.CollectionUsers), 1)
	assert.Empty(t, fx.list(t, account.CollectionSellers))
}

func TestOTPRequiresExactlySixDigits(t *testing.T) {
	fx := newFixture(t)
	f := fx.registry.Start("s1", localeOf(locale.CodeIndia))
	require.NoError(t, f.SetPhone("9876543210"))
	require.NoError(t, f.SubmitPhone(context.Background()))

	for _, bad := range []string{"1234567", "12a456", "12 456", "-12345", "１２３４５６"} {
		err := f.EnterOTP(bad)
		assert.ErrorIs(t, err, ErrInvalidOTP, bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}

	require.NoError(t, f.EnterOTP("12345"))
	assert.False(t, f.CanSubmit())
	assert.ErrorIs(t, f.SubmitOTP(context.Background()), ErrOTPIncomplete)
	assert.Equal(t, StepOTP, f.Snapshot().Draft.Step)

	require.NoError(t, f.EnterOTP("123456"))
	assert.True(t, f.CanSubmit())
	require.NoError(t, f.SubmitOTP(context.Background()))
	assert.Equal(t, StepProfile, f.Snapshot().Draft.Step)
}

func TestVerifierRejectionKeepsOTPStep(t *testing.T) {
	fx := newFixture(t)
	var gotPhone string
	fx.verifier.VerifyFunc = func(_ context.Context, phone, _ string) error {
		gotPhone = phone
		return otp.ErrInvalidCode
	}
	f := fx.registry.Start("s1", localeOf(locale.CodeIndia))
	require.NoError(t, f.SetPhone("9876543210"))
	require.NoError(t, f.SubmitPhone(context.Background()))
	require.NoError(t, f.EnterOTP("654321"))

	err := f.SubmitOTP(context.Background())
	assert.ErrorIs(t, err, ErrOTPRejected)
	assert.ErrorIs(t, err, otp.ErrInvalidCode)
	assert.Equal(t, "+919876543210", gotPhone)
	assert.Equal(t, StepOTP, f.Snapshot().Draft.Step)
}

func TestPhoneDigitsAreSanitised(t *testing.T) {
	fx := newFixture(t)
	f := fx.registry.Start("s1", localeOf(locale.CodeIndia))

	require.NoError(t, f.SetPhone("98765-43210 99"))
	assert.Equal(t, "9876543210", f.Snapshot().Draft.PhoneDigits)

	require.NoError(t, f.SetPhone("98a76 5"))
	assert.Equal(t, "98765", f.Snapshot().Draft.PhoneDigits)
	assert.False(t, f.CanSubmit())
	assert.ErrorIs(t, f.SubmitPhone(context.Background()), ErrPhoneTooShort)
	assert.Equal(t, StepPhone, f.Snapshot().Draft.Step)
	assert.Empty(t, fx.dispatcher.sent())
}

func TestDispatchFailureStaysOnPhone(t *testing.T) {
	fx := newFixture(t)
	fx.dispatcher.err = errors.New("sms down")
	f := fx.registry.Start("s1", localeOf(locale.CodeNepal))
	require.NoError(t, f.SetPhone("9812345678"))

	err := f.SubmitPhone(context.Background())
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.Equal(t, StepPhone, f.Snapshot().Draft.Step)
}

func TestSellerDraftRejectedAfterCountrySwitch(t *testing.T) {
	fx := newFixture(t)
	src := localeOf(locale.CodeIndia)
	f := fx.registry.Start("s1", src)
	require.NoError(t, f.SetRole(account.RoleSeller))
	require.NoError(t, f.SetPhone("9876543210"))

	src.set(locale.CodeNepal)
	assert.False(t, f.CanSubmit())
	assert.ErrorIs(t, f.SubmitPhone(context.Background()), ErrSellerNotEligible)
	assert.Empty(t, fx.dispatcher.sent())
}

func TestBusinessNameOnlyRequiredForIndianSellers(t *testing.T) {
	tests := []struct {
		name    string
		country locale.Code
		role    account.Role
		want    error
	}{
		{"india seller", locale.CodeIndia, account.RoleSeller, ErrBusinessNameRequired},
		{"india buyer", locale.CodeIndia, account.RoleBuyer, nil},
		{"nepal buyer", locale.CodeNepal, account.RoleBuyer, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			f := fx.registry.Start("s1", localeOf(tt.country))
			toProfile(t, f, "9876543210", tt.role)

			assert.ErrorIs(t, func() error { _, err := f.SubmitProfile(context.Background()); return err }(), ErrNameRequired)

			require.NoError(t, f.SetProfile(Profile{Name: "Asha"}))
			_, err := f.SubmitProfile(context.Background())
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, StepProfile, f.Snapshot().Draft.Step)
		})
	}
}

func TestBackTransitions(t *testing.T) {
	fx := newFixture(t)
	f := fx.registry.Start("s1", localeOf(locale.CodeIndia))

	assert.ErrorIs(t, f.Back(), ErrInvalidTransition)

	require.NoError(t, f.SetRole(account.RoleSeller))
	require.NoError(t, f.SetPhone("9876543210"))
	require.NoError(t, f.SubmitPhone(context.Background()))
	require.NoError(t, f.EnterOTP("1234"))

	require.NoError(t, f.Back())
	view := f.Snapshot()
	assert.Equal(t, StepPhone, view.Draft.Step)
	assert.Empty(t, view.Draft.OTP)
	assert.Equal(t, "9876543210", view.Draft.PhoneDigits)
	assert.Equal(t, account.RoleSeller, view.Draft.Role)

	require.NoError(t, f.SubmitPhone(context.Background()))
	require.NoError(t, f.EnterOTP("123456"))
	require.NoError(t, f.SubmitOTP(context.Background()))
	require.NoError(t, f.Back())
	assert.Equal(t, StepOTP, f.Snapshot().Draft.Step)
	assert.Equal(t, "123456", f.Snapshot().Draft.OTP)
}

func TestCancelFromProfileDiscardsDraft(t *testing.T) {
	fx := newFixture(t)
	src := localeOf(locale.CodeIndia)
	f := fx.registry.Start("s1", src)
	toProfile(t, f, "9876543210", account.RoleSeller)
	require.NoError(t, f.SetProfile(Profile{Name: "Asha", Email: "a@example.com", BusinessName: "Asha Traders"}))

	f.Cancel()
	assert.Equal(t, newDraft(), f.Snapshot().Draft)

	reopened := fx.registry.Start("s1", src)
	view := reopened.Snapshot()
	assert.NotEqual(t, f.ID(), reopened.ID())
	assert.Equal(t, StepPhone, view.Draft.Step)
	assert.Empty(t, view.Draft.PhoneDigits)
	assert.Empty(t, view.Draft.OTP)
	assert.Equal(t, Profile{}, view.Draft.Profile)

	assert.Empty(t, fx.list(t, account.CollectionUsers))
}

func TestCommitFailureStaysOnProfile(t *testing.T) {
	fx := newFixture(t)
	storeErr := errors.New("storage unavailable")
	fx.accounts.CreateAccountFunc = func(context.Context, account.Account) (account.Account, error) {
		return account.Account{}, storeErr
	}
	f := fx.registry.Start("s1", localeOf(locale.CodeNepal))
	toProfile(t, f, "9812345678", account.RoleBuyer)
	require.NoError(t, f.SetProfile(Profile{Name: "Bikash"}))

	_, err := f.SubmitProfile(context.Background())
	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.ErrorIs(t, err, storeErr)

	view := f.Snapshot()
	assert.Equal(t, StepProfile, view.Draft.Step)
	assert.Equal(t, "Bikash", view.Draft.Profile.Name)
	assert.False(t, view.Busy)
	assert.True(t, view.CanSubmit)
}

func TestPartialRegistrationResumesAtSellerProfile(t *testing.T) {
	fx := newFixture(t)
	failures := 1
	fx.accounts.CreateSellerProfileFunc = func(ctx context.Context, p account.SellerProfile) (account.SellerProfile, error) {
		if failures > 0 {
			failures--
			return account.SellerProfile{}, errors.New("sellers collection unavailable")
		}
		return fx.accounts.repo.CreateSellerProfile(ctx, p)
	}
	f := fx.registry.Start("s1", localeOf(locale.CodeIndia))
	toProfile(t, f, "9876543210", account.RoleSeller)
	require.NoError(t, f.SetProfile(Profile{Name: "Asha", BusinessName: "Asha Traders"}))

	_, err := f.SubmitProfile(context.Background())
	require.ErrorIs(t, err, ErrPartialRegistration)
	var partial *PartialRegistrationError
	require.True(t, errors.As(err, &partial))
	assert.NotEmpty(t, partial.AccountID)
	assert.Equal(t, StepProfile, f.Snapshot().Draft.Step)
	assert.Equal(t, partial.AccountID, f.Snapshot().AccountID)

	res, err := f.SubmitProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, partial.AccountID, res.Account.ID)
	require.NotNil(t, res.Seller)
	assert.Equal(t, partial.AccountID, res.Seller.AccountID)

	assert.Len(t, fx.list(t, account.CollectionUsers), 1, "retry must not create a second account")
	assert.Len(t, fx.list(t, account.CollectionSellers), 1)
}

func blockingCreate(fx *fixture) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	fx.accounts.CreateAccountFunc = func(ctx context.Context, a account.Account) (account.Account, error) {
		close(entered)
		<-release
		return fx.accounts.repo.CreateAccount(ctx, a)
	}
	return entered, release
}

func TestSecondSubmitRejectedWhileCommitting(t *testing.T) {
	fx := newFixture(t)
	entered, release := blockingCreate(fx)
	f := fx.registry.Start("s1", localeOf(locale.CodeNepal))
	toProfile(t, f, "9812345678", account.RoleBuyer)
	require.NoError(t, f.SetProfile(Profile{Name: "Bikash"}))

	done := make(chan error, 1)
	go func() {
		_, err := f.SubmitProfile(context.Background())
		done <- err
	}()
	<-entered

	_, err := f.SubmitProfile(context.Background())
	assert.ErrorIs(t, err, ErrCommitInProgress)
	assert.ErrorIs(t, f.Back(), ErrBusy)
	assert.False(t, f.CanSubmit())

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, fx.list(t, account.CollectionUsers), 1)
	assert.Equal(t, StepDone, f.Snapshot().Draft.Step)
}

func TestCancelDuringCommitHidesResult(t *testing.T) {
	fx := newFixture(t)
	entered, release := blockingCreate(fx)
	events, stop := fx.broadcaster.Subscribe(context.Background())
	defer stop()

	f := fx.registry.Start("s1", localeOf(locale.CodeNepal))
	toProfile(t, f, "9812345678", account.RoleBuyer)
	require.NoError(t, f.SetProfile(Profile{Name: "Bikash"}))

	done := make(chan error, 1)
	go func() {
		_, err := f.SubmitProfile(context.Background())
		done <- err
	}()
	<-entered

	f.Cancel()
	assert.Equal(t, newDraft(), f.Snapshot().Draft)

	close(release)
	assert.ErrorIs(t, <-done, ErrFlowCancelled)

	view := f.Snapshot()
	assert.Equal(t, StepPhone, view.Draft.Step)
	assert.Empty(t, view.AccountID)
	_, ok := f.Result()
	assert.False(t, ok)

	select {
	case ev := <-events:
		t.Fatalf("cancelled commit must not announce a session, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelAfterCompletionReopensFlow(t *testing.T) {
	fx := newFixture(t)
	f := fx.registry.Start("s1", localeOf(locale.CodeNepal))
	toProfile(t, f, "9812345678", account.RoleBuyer)
	require.NoError(t, f.SetProfile(Profile{Name: "Bikash"}))
	_, err := f.SubmitProfile(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, f.SetPhone("9812345678"), ErrInvalidTransition)
	f.Cancel()
	assert.Equal(t, StepPhone, f.Snapshot().Draft.Step)
	assert.NoError(t, f.SetPhone("9812345678"))
}

func TestRegistryLookup(t *testing.T) {
	fx := newFixture(t)
	f := fx.registry.Start("s1", localeOf(locale.CodeIndia))

	got, err := fx.registry.Get(f.ID())
	require.NoError(t, err)
	assert.Same(t, f, got)
	assert.Equal(t, "s1", got.SessionID())

	fx.registry.Remove(f.ID())
	_, err = fx.registry.Get(f.ID())
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestCountrySwitchAfterPhoneStepReturnsToPhone(t *testing.T) {
	tests := []struct {
		name  string
		stage Step
	}{
		{"switch while entering otp", StepOTP},
		{"switch while entering profile", StepProfile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			src := localeOf(locale.CodeIndia)
			f := fx.registry.Start("s1", src)
			ctx := context.Background()

			require.NoError(t, f.SetRole(account.RoleSeller))
			require.NoError(t, f.SetPhone("9876543210"))
			require.NoError(t, f.SubmitPhone(ctx))
			require.NoError(t, f.EnterOTP("000000"))
			assert.Equal(t, "IN", f.Snapshot().DraftCountryCode)

			var err error
			if tt.stage == StepOTP {
				src.set(locale.CodeNepal)
				err = f.SubmitOTP(ctx)
			} else {
				require.NoError(t, f.SubmitOTP(ctx))
				require.NoError(t, f.SetProfile(Profile{Name: "Asha", BusinessName: "Asha Traders"}))
				src.set(locale.CodeNepal)
				_, err = f.SubmitProfile(ctx)
			}
			assert.ErrorIs(t, err, ErrCountryChanged)
			assert.ErrorIs(t, err, ErrValidation)

			view := f.Snapshot()
			assert.Equal(t, StepPhone, view.Draft.Step)
			assert.Empty(t, view.Draft.OTP)
			assert.Empty(t, view.DraftCountryCode)
			assert.Equal(t, "9876543210", view.Draft.PhoneDigits)
			assert.False(t, view.CanSubmit)

			assert.ErrorIs(t, f.SubmitPhone(ctx), ErrSellerNotEligible)
			assert.Equal(t, []string{"+919876543210"}, fx.dispatcher.sent())
			assert.Empty(t, fx.list(t, account.CollectionUsers))
			assert.Empty(t, fx.list(t, account.CollectionSellers))
		})
	}
}

func TestBuyerCommitsUnderCountryTheCodeWasSentTo(t *testing.T) {
	fx := newFixture(t)
	src := localeOf(locale.CodeIndia)
	f := fx.registry.Start("s1", src)
	ctx := context.Background()
	toProfile(t, f, "9876543210", account.RoleBuyer)
	require.NoError(t, f.SetProfile(Profile{Name: "Ravi"}))

	src.set(locale.CodeNepal)
	_, err := f.SubmitProfile(ctx)
	require.ErrorIs(t, err, ErrCountryChanged)

	require.NoError(t, f.SubmitPhone(ctx))
	require.NoError(t, f.EnterOTP("000000"))
	require.NoError(t, f.SubmitOTP(ctx))
	assert.Equal(t, "Ravi", f.Snapshot().Draft.Profile.Name)

	res, err := f.SubmitProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "NP", res.Account.CountryCode)
	assert.Equal(t, "+9779876543210", res.Account.PhoneNumber)
	assert.Equal(t, []string{"+919876543210", "+9779876543210"}, fx.dispatcher.sent())
}

func TestCountrySwitchDuringPartialRegistration(t *testing.T) {
	setup := func(t *testing.T) (*fixture, *switchableLocale, *Flow, string) {
		fx := newFixture(t)
		failures := 1
		fx.accounts.CreateSellerProfileFunc = func(ctx context.Context, p account.SellerProfile) (account.SellerProfile, error) {
			if failures > 0 {
				failures--
				return account.SellerProfile{}, errors.New("sellers collection unavailable")
			}
			return fx.accounts.repo.CreateSellerProfile(ctx, p)
		}
		src := localeOf(locale.CodeIndia)
		f := fx.registry.Start("s1", src)
		toProfile(t, f, "9876543210", account.RoleSeller)
		require.NoError(t, f.SetProfile(Profile{Name: "Asha", BusinessName: "Asha Traders"}))

		_, err := f.SubmitProfile(context.Background())
		var partial *PartialRegistrationError
		require.True(t, errors.As(err, &partial))

		src.set(locale.CodeNepal)
		_, err = f.SubmitProfile(context.Background())
		require.ErrorIs(t, err, ErrCountryChanged)
		require.Equal(t, StepPhone, f.Snapshot().Draft.Step)
		require.Empty(t, fx.list(t, account.CollectionSellers))
		return fx, src, f, partial.AccountID
	}

	t.Run("switching back resumes the seller profile", func(t *testing.T) {
		fx, src, f, accountID := setup(t)
		ctx := context.Background()

		src.set(locale.CodeIndia)
		require.NoError(t, f.SubmitPhone(ctx))
		require.NoError(t, f.EnterOTP("000000"))
		require.NoError(t, f.SubmitOTP(ctx))

		res, err := f.SubmitProfile(ctx)
		require.NoError(t, err)
		assert.Equal(t, accountID, res.Account.ID)
		require.NotNil(t, res.Seller)
		assert.Len(t, fx.list(t, account.CollectionUsers), 1)
		assert.Len(t, fx.list(t, account.CollectionSellers), 1)
	})

	t.Run("registering as a nepal buyer starts a fresh account", func(t *testing.T) {
		fx, _, f, accountID := setup(t)
		ctx := context.Background()

		require.NoError(t, f.SetRole(account.RoleBuyer))
		assert.Empty(t, f.Snapshot().AccountID)
		require.NoError(t, f.SubmitPhone(ctx))
		require.NoError(t, f.EnterOTP("000000"))
		require.NoError(t, f.SubmitOTP(ctx))

		res, err := f.SubmitProfile(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, accountID, res.Account.ID)
		assert.Equal(t, account.RoleBuyer, res.Account.Role)
		assert.Equal(t, "NP", res.Account.CountryCode)
		assert.Nil(t, res.Seller)
		assert.Empty(t, fx.list(t, account.CollectionSellers))
	})
}

func TestBackFromProfileKeepsVerifiedCode(t *testing.T) {
	fx := newFixture(t)
	calls := 0
	fx.verifier.VerifyFunc = func(context.Context, string, string) error {
		calls++
		if calls > 1 {
			return otp.ErrCodeExpired
		}
		return nil
	}
	f := fx.registry.Start("s1", localeOf(locale.CodeNepal))
	ctx := context.Background()
	toProfile(t, f, "9812345678", account.RoleBuyer)

	require.NoError(t, f.Back())
	require.NoError(t, f.SubmitOTP(ctx))
	assert.Equal(t, StepProfile, f.Snapshot().Draft.Step)
	assert.Equal(t, 1, calls)

	// A different code goes back to the verifier.
	require.NoError(t, f.Back())
	require.NoError(t, f.EnterOTP("111111"))
	assert.ErrorIs(t, f.SubmitOTP(ctx), ErrOTPRejected)

	// A new dispatch needs a new verification.
	require.NoError(t, f.Back())
	require.NoError(t, f.SubmitPhone(ctx))
	require.NoError(t, f.EnterOTP("000000"))
	assert.ErrorIs(t, f.SubmitOTP(ctx), ErrOTPRejected)
	assert.Equal(t, 3, calls)
}

func TestRegistrySweepDropsIdleFlows(t *testing.T) {
	fx := newFixture(t)
	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	fx.registry.now = func() time.Time { return clock }

	stale := fx.registry.Start("s1", localeOf(locale.CodeNepal))
	fresh := fx.registry.Start("s2", localeOf(locale.CodeNepal))

	entered, release := blockingCreate(fx)
	committing := fx.registry.Start("s3", localeOf(locale.CodeNepal))
	toProfile(t, committing, "9812345678", account.RoleBuyer)
	require.NoError(t, committing.SetProfile(Profile{Name: "Bikash"}))
	done := make(chan error, 1)
	go func() {
		_, err := committing.SubmitProfile(context.Background())
		done <- err
	}()
	<-entered

	clock = clock.Add(20 * time.Minute)
	_, err := fx.registry.Get(fresh.ID())
	require.NoError(t, err)

	clock = clock.Add(15 * time.Minute)
	assert.Equal(t, 1, fx.registry.Sweep(30*time.Minute))
	assert.Equal(t, 2, fx.registry.Len())

	_, err = fx.registry.Get(stale.ID())
	assert.ErrorIs(t, err, ErrFlowNotFound)
	_, err = fx.registry.Get(committing.ID())
	assert.NoError(t, err, "flows with a commit in flight are kept")

	close(release)
	require.NoError(t, <-done)
}
