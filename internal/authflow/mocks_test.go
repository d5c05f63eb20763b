package authflow

import (
	"context"
	"sync"

	"github.com/npmart/storefront/internal/account"
	"github.com/npmart/storefront/internal/locale"
	"github.com/npmart/storefront/internal/records"
)

type switchableLocale struct {
	mu sync.Mutex
	c  locale.Country
}

func localeOf(code locale.Code) *switchableLocale {
	return &switchableLocale{c: locale.MustLookup(code)}
}

func (s *switchableLocale) Active() locale.Country {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c
}

func (s *switchableLocale) set(code locale.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c = locale.MustLookup(code)
}

type mockDispatcher struct {
	mu     sync.Mutex
	phones []string
	err    error
}

func (d *mockDispatcher) Dispatch(_ context.Context, phone string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.phones = append(d.phones, phone)
	return nil
}

func (d *mockDispatcher) sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.phones...)
}

type mockVerifier struct {
	VerifyFunc func(ctx context.Context, phone, code string) error
}

func (v *mockVerifier) Verify(ctx context.Context, phone, code string) error {
	if v.VerifyFunc == nil {
		return nil
	}
	return v.VerifyFunc(ctx, phone, code)
}

// mockAccounts delegates to a real repository unless a func field is set.
type mockAccounts struct {
	repo                    *account.Repository
	CreateAccountFunc       func(ctx context.Context, a account.Account) (account.Account, error)
	CreateSellerProfileFunc func(ctx context.Context, p account.SellerProfile) (account.SellerProfile, error)
}

func newMockAccounts(store records.Store) *mockAccounts {
	return &mockAccounts{repo: account.NewRepository(store)}
}

func (m *mockAccounts) CreateAccount(ctx context.Context, a account.Account) (account.Account, error) {
	if m.CreateAccountFunc != nil {
		return m.CreateAccountFunc(ctx, a)
	}
	return m.repo.CreateAccount(ctx, a)
}

func (m *mockAccounts) CreateSellerProfile(ctx context.Context, p account.SellerProfile) (account.SellerProfile, error) {
	if m.CreateSellerProfileFunc != nil {
		return m.CreateSellerProfileFunc(ctx, p)
	}
	return m.repo.CreateSellerProfile(ctx, p)
}
