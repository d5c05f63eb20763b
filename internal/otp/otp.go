package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/npmart/storefront/internal/notification"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

var (
	ErrInvalidCode     = errors.New("otp code is invalid")
	ErrCodeExpired     = errors.New("otp code expired or was never sent")
	ErrTooManyAttempts = errors.New("too many otp attempts")
	ErrResendTooSoon   = errors.New("otp resend requested too soon")
)

// Dispatcher sends a fresh verification code to a full phone number.
type Dispatcher interface {
	Dispatch(ctx context.Context, phone string) error
}

// Verifier checks an entered code for a full phone number.
type Verifier interface {
	Verify(ctx context.Context, phone, code string) error
}

// AcceptAny accepts every code. It mirrors the storefront's original
// behaviour where any six digits pass; enable OTP_VERIFY to replace it.
type AcceptAny struct{}

// Verify implements Verifier.
func (AcceptAny) Verify(context.Context, string, string) error { return nil }

// NotifyDispatcher sends a code without remembering it. Pair it with AcceptAny.
type NotifyDispatcher struct {
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewNotifyDispatcher builds a dispatcher that only notifies.
func NewNotifyDispatcher(notifier notification.Notifier, logger *slog.Logger) *NotifyDispatcher {
	return &NotifyDispatcher{notifier: notifier, logger: logger}
}

// Dispatch implements Dispatcher.
func (d *NotifyDispatcher) Dispatch(ctx context.Context, phone string) error {
	code, err := generateCode(CodeLength)
	if err != nil {
		return err
	}
	if err := d.notifier.Send(ctx, codeMessage(phone, code, 0)); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	d.logger.Debug("otp dispatched", slog.String("phone", phone))
	return nil
}

func codeMessage(phone, code string, validMinutes int) notification.Message {
	body := fmt.Sprintf("Your NpMart verification code is %s.", code)
	if validMinutes > 0 {
		body = fmt.Sprintf("Your NpMart verification code is %s. Valid for %d minutes.", code, validMinutes)
	}
	return notification.Message{Kind: notification.KindOTP, Destination: phone, Body: body}
}

func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate otp digit: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
