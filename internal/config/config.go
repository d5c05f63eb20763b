package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName          = "NpMart"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultDetectTimeout    = 5 * time.Second
	defaultReverseGeocode   = "https://api.bigdatacloud.net/data/reverse-geocode-client"
	defaultSessionTTL       = 7 * 24 * time.Hour
	defaultSessionIdleTTL   = 30 * time.Minute
	defaultOTPTTL           = 5 * time.Minute
	defaultOTPResendWindow  = 60 * time.Second
	defaultOTPMaxAttempts   = 3
	defaultOTPRateLimit     = 5
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
	detectTimeoutEnvVar     = "LOCALE_DETECT_TIMEOUT"
	preferenceTTLEnvVar     = "LOCALE_PREFERENCE_TTL"
	sessionTTLEnvVar        = "SESSION_TTL"
	sessionIdleTTLEnvVar    = "SESSION_IDLE_TTL"
	otpTTLEnvVar            = "OTP_TTL"
	otpResendWindowEnvVar   = "OTP_RESEND_WINDOW"
	otpMaxAttemptsEnvVar    = "OTP_MAX_ATTEMPTS"
	otpRateLimitEnvVar      = "OTP_RATE_LIMIT"
	otpVerifyEnvVar         = "OTP_VERIFY"
	devSessionSecretDefault = "dev-session-secret"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// Locale resolution.
	DetectTimeout     time.Duration
	PreferenceTTL     time.Duration
	ReverseGeocodeURL string

	// Session tokens issued after registration. SessionIdleTTL bounds how
	// long unused locale states and registration flows stay in memory; zero
	// disables the sweep.
	SessionSecret  string
	SessionTTL     time.Duration
	SessionIdleTTL time.Duration

	// OTP dispatch and verification.
	OTPTTL          time.Duration
	OTPResendWindow time.Duration
	OTPMaxAttempts  int
	OTPRateLimit    int
	OTPVerify       bool

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
		DetectTimeout:     defaultDetectTimeout,
		ReverseGeocodeURL: getEnv("REVERSE_GEOCODE_URL", defaultReverseGeocode),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		SessionTTL:        defaultSessionTTL,
		SessionIdleTTL:    defaultSessionIdleTTL,
		OTPTTL:            defaultOTPTTL,
		OTPResendWindow:   defaultOTPResendWindow,
		OTPMaxAttempts:    defaultOTPMaxAttempts,
		OTPRateLimit:      defaultOTPRateLimit,
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:        os.Getenv("TWILIO_FROM"),
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{detectTimeoutEnvVar, &cfg.DetectTimeout},
		{preferenceTTLEnvVar, &cfg.PreferenceTTL},
		{sessionTTLEnvVar, &cfg.SessionTTL},
		{sessionIdleTTLEnvVar, &cfg.SessionIdleTTL},
		{otpTTLEnvVar, &cfg.OTPTTL},
		{otpResendWindowEnvVar, &cfg.OTPResendWindow},
	}
	for _, d := range durations {
		if err := parseDuration(d.env, d.dst); err != nil {
			return Config{}, err
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{otpMaxAttemptsEnvVar, &cfg.OTPMaxAttempts},
		{otpRateLimitEnvVar, &cfg.OTPRateLimit},
	}
	for _, i := range ints {
		if v := os.Getenv(i.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", i.env, err)
			}
			*i.dst = n
		}
	}

	if v := os.Getenv(otpVerifyEnvVar); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", otpVerifyEnvVar, err)
		}
		cfg.OTPVerify = b
	}

	if cfg.DetectTimeout <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", detectTimeoutEnvVar)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
		if cfg.SessionSecret == "" {
			return Config{}, fmt.Errorf("SESSION_SECRET must be set")
		}
		if cfg.TwilioAccountSID != "" && (cfg.TwilioAuthToken == "" || cfg.TwilioFrom == "") {
			return Config{}, fmt.Errorf("TWILIO_AUTH_TOKEN and TWILIO_FROM must be set with TWILIO_ACCOUNT_SID")
		}
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = devSessionSecretDefault
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether in-memory adapters may stand in for Postgres and Redis.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func parseDuration(env string, dst *time.Duration) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", env, err)
	}
	*dst = d
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
