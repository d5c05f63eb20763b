package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/npmart/storefront/internal/notification"
)

const (
	codeKeyPrefix     = "otp:"
	attemptsKeyPrefix = "otp:att:"
	resendKeyPrefix   = "otp:res:"
)

// Config tunes the Redis-backed OTP service.
type Config struct {
	TTL          time.Duration
	MaxAttempts  int
	ResendWindow time.Duration
	HashCost     int
}

// Service stores a bcrypt hash of each dispatched code in Redis and checks
// entered codes against it.
type Service struct {
	cache    *redis.Client
	notifier notification.Notifier
	cfg      Config
	logger   *slog.Logger
}

// NewService builds a verifying OTP service.
func NewService(cache *redis.Client, notifier notification.Notifier, cfg Config, logger *slog.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	return &Service{cache: cache, notifier: notifier, cfg: cfg, logger: logger}
}

// Dispatch implements Dispatcher.
func (s *Service) Dispatch(ctx context.Context, phone string) error {
	if wait, err := s.resendWait(ctx, phone); err != nil {
		return err
	} else if wait > 0 {
		return fmt.Errorf("%w: retry in %ds", ErrResendTooSoon, int(wait.Seconds()))
	}

	code, err := generateCode(CodeLength)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.HashCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	pipe := s.cache.TxPipeline()
	pipe.Set(ctx, codeKeyPrefix+phone, hash, s.cfg.TTL)
	pipe.Set(ctx, attemptsKeyPrefix+phone, 0, s.cfg.TTL)
	if s.cfg.ResendWindow > 0 {
		pipe.Set(ctx, resendKeyPrefix+phone, 1, s.cfg.ResendWindow)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	if err := s.notifier.Send(ctx, codeMessage(phone, code, int(s.cfg.TTL.Minutes()))); err != nil {
		s.cache.Del(ctx, codeKeyPrefix+phone, attemptsKeyPrefix+phone, resendKeyPrefix+phone)
		return fmt.Errorf("send otp: %w", err)
	}
	s.logger.Info("otp dispatched", slog.String("phone", phone))
	return nil
}

// Verify implements Verifier. A successful check consumes the code.
func (s *Service) Verify(ctx context.Context, phone, code string) error {
	attempts, err := s.cache.Incr(ctx, attemptsKeyPrefix+phone).Result()
	if err != nil {
		return fmt.Errorf("count otp attempt: %w", err)
	}
	if attempts > int64(s.cfg.MaxAttempts) {
		s.cache.Del(ctx, codeKeyPrefix+phone, attemptsKeyPrefix+phone)
		return ErrTooManyAttempts
	}

	hash, err := s.cache.Get(ctx, codeKeyPrefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		s.cache.Del(ctx, attemptsKeyPrefix+phone)
		return ErrCodeExpired
	}
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(code)); err != nil {
		return ErrInvalidCode
	}
	s.cache.Del(ctx, codeKeyPrefix+phone, attemptsKeyPrefix+phone)
	return nil
}

func (s *Service) resendWait(ctx context.Context, phone string) (time.Duration, error) {
	ttl, err := s.cache.TTL(ctx, resendKeyPrefix+phone).Result()
	if err != nil {
		return 0, fmt.Errorf("check otp resend window: %w", err)
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}
