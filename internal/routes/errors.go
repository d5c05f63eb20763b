package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/npmart/storefront/internal/authflow"
	"github.com/npmart/storefront/internal/otp"
)

// flowError maps registration errors onto HTTP statuses.
func flowError(c *fiber.Ctx, err error) error {
	var partial *authflow.PartialRegistrationError
	if errors.As(err, &partial) {
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{
			"error":      "account created but seller profile failed, submit again to retry",
			"account_id": partial.AccountID,
		})
	}

	switch {
	case errors.Is(err, otp.ErrResendTooSoon), errors.Is(err, otp.ErrTooManyAttempts):
		return fiber.NewError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, authflow.ErrValidation):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, authflow.ErrFlowNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, authflow.ErrBusy),
		errors.Is(err, authflow.ErrInvalidTransition),
		errors.Is(err, authflow.ErrFlowCancelled):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, authflow.ErrDispatchFailed), errors.Is(err, authflow.ErrCommitFailed):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	default:
		return err
	}
}
