package routes

import (
	"log/slog"
	"time"

	"github.com/npmart/storefront/internal/account"
	"github.com/npmart/storefront/internal/authflow"
	"github.com/npmart/storefront/internal/locale"
	"github.com/npmart/storefront/internal/notification"
	"github.com/npmart/storefront/internal/otp"
	"github.com/npmart/storefront/internal/records"
	"github.com/npmart/storefront/internal/session"
)

// services is the object graph behind the HTTP surface. Postgres and Redis
// adapters are used when their clients are present, in-memory ones otherwise.
type services struct {
	logger   *slog.Logger
	sessions *locale.Sessions
	resolver *locale.Resolver
	flows    *authflow.Registry
	accounts *account.Repository
	issuer   *session.Issuer
}

func newServices(d Deps) *services {
	var store records.Store
	if d.DB != nil {
		store = records.NewPostgresStore(d.DB)
	} else {
		store = records.NewMemoryStore()
	}

	var prefs locale.PreferenceStore
	var broadcaster session.Broadcaster
	if d.Cache != nil {
		prefs = locale.NewRedisPreferenceStore(d.Cache, d.Cfg.PreferenceTTL)
		broadcaster = session.NewRedisBroadcaster(d.Cache, d.Logger)
	} else {
		prefs = locale.NewMemoryPreferenceStore()
		broadcaster = session.NewMemoryBroadcaster()
	}

	lookup := d.Lookup
	if lookup == nil && d.Cfg.ReverseGeocodeURL != "" {
		lookup = locale.NewReverseGeocoder(d.Cfg.ReverseGeocodeURL, nil)
	}

	notifier := d.Notifier
	if notifier == nil {
		if d.Cfg.TwilioAccountSID != "" {
			notifier = notification.NewTwilioNotifier(d.Cfg.TwilioAccountSID, d.Cfg.TwilioAuthToken, d.Cfg.TwilioFrom, d.Logger)
		} else {
			if !d.Cfg.IsDev() {
				d.Logger.Warn("TWILIO_ACCOUNT_SID not set; OTP messages are logged, not sent")
			}
			notifier = notification.NewLoggerNotifier(d.Logger)
		}
	}

	var dispatcher otp.Dispatcher
	var verifier otp.Verifier
	if d.Cfg.OTPVerify && d.Cache != nil {
		svc := otp.NewService(d.Cache, notifier, otp.Config{
			TTL:          d.Cfg.OTPTTL,
			MaxAttempts:  d.Cfg.OTPMaxAttempts,
			ResendWindow: d.Cfg.OTPResendWindow,
		}, d.Logger)
		dispatcher, verifier = svc, svc
	} else {
		if d.Cfg.OTPVerify {
			d.Logger.Warn("OTP_VERIFY needs redis; accepting any code")
		}
		dispatcher, verifier = otp.NewNotifyDispatcher(notifier, d.Logger), otp.AcceptAny{}
	}

	accounts := account.NewRepository(store)
	issuer := session.NewIssuer(d.Cfg.SessionSecret, d.Cfg.SessionTTL)

	return &services{
		logger:   d.Logger,
		sessions: locale.NewSessions(),
		resolver: locale.NewResolver(prefs, lookup, d.Cfg.DetectTimeout, d.Logger),
		flows: authflow.NewRegistry(authflow.Deps{
			Accounts:    accounts,
			Dispatcher:  dispatcher,
			Verifier:    verifier,
			Broadcaster: broadcaster,
			Issuer:      issuer,
			Logger:      d.Logger,
		}),
		accounts: accounts,
		issuer:   issuer,
	}
}

// sweep drops sessions and flows idle for longer than idle.
func (s *services) sweep(idle time.Duration) {
	flows := s.flows.Sweep(idle)
	sessions := s.sessions.Sweep(idle)
	if flows > 0 || sessions > 0 {
		s.logger.Debug("swept idle state", slog.Int("flows", flows), slog.Int("sessions", sessions))
	}
}

// sweepIdle runs sweep every half idle window until done is closed.
func (s *services) sweepIdle(idle time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(idle)
		case <-done:
			return
		}
	}
}
