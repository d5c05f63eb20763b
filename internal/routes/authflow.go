package routes

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/npmart/storefront/internal/account"
	"github.com/npmart/storefront/internal/authflow"
	"github.com/npmart/storefront/internal/middleware"
)

// RegisterAuthFlowRoutes wires the phone registration flow. otpLimiter guards
// code dispatch; commitGuard, when set, guards the final commit.
func RegisterAuthFlowRoutes(r fiber.Router, svc *services, otpLimiter, commitGuard fiber.Handler) {
	flows := r.Group("/auth/flows")

	flows.Post("", func(c *fiber.Ctx) error {
		st := resolvedState(c, svc)
		f := svc.flows.Start(st.SessionID(), st)
		return c.Status(http.StatusCreated).JSON(f.Snapshot())
	})

	flows.Get("/:id", func(c *fiber.Ctx) error {
		f, err := flowFor(c, svc)
		if err != nil {
			return flowError(c, err)
		}
		return c.JSON(f.Snapshot())
	})

	flows.Post("/:id/phone", otpLimiter, func(c *fiber.Ctx) error {
		var req struct {
			Phone string `json:"phone"`
			Role  string `json:"role"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return step(c, svc, func(ctx context.Context, f *authflow.Flow) error {
			if req.Role != "" {
				if err := f.SetRole(account.Role(req.Role)); err != nil {
					return err
				}
			}
			if err := f.SetPhone(req.Phone); err != nil {
				return err
			}
			return f.SubmitPhone(ctx)
		})
	})

	flows.Post("/:id/otp", func(c *fiber.Ctx) error {
		var req struct {
			OTP string `json:"otp"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return step(c, svc, func(ctx context.Context, f *authflow.Flow) error {
			if err := f.EnterOTP(req.OTP); err != nil {
				return err
			}
			return f.SubmitOTP(ctx)
		})
	})

	profileHandlers := []fiber.Handler{}
	if commitGuard != nil {
		profileHandlers = append(profileHandlers, commitGuard)
	}
	profileHandlers = append(profileHandlers, func(c *fiber.Ctx) error {
		var req authflow.Profile
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		f, err := flowFor(c, svc)
		if err != nil {
			return flowError(c, err)
		}
		if err := f.SetProfile(req); err != nil {
			return flowError(c, err)
		}
		res, err := f.SubmitProfile(c.UserContext())
		if err != nil {
			return flowError(c, err)
		}
		return c.Status(http.StatusCreated).JSON(res)
	})
	flows.Post("/:id/profile", profileHandlers...)

	flows.Post("/:id/back", func(c *fiber.Ctx) error {
		return step(c, svc, func(_ context.Context, f *authflow.Flow) error {
			return f.Back()
		})
	})

	flows.Post("/:id/cancel", func(c *fiber.Ctx) error {
		return step(c, svc, func(_ context.Context, f *authflow.Flow) error {
			f.Cancel()
			return nil
		})
	})
}

// flowFor returns the flow named in the path if it belongs to the caller's session.
func flowFor(c *fiber.Ctx, svc *services) (*authflow.Flow, error) {
	f, err := svc.flows.Get(c.Params("id"))
	if err != nil {
		return nil, err
	}
	if f.SessionID() != middleware.SessionIDFrom(c) {
		return nil, authflow.ErrFlowNotFound
	}
	return f, nil
}

func step(c *fiber.Ctx, svc *services, fn func(ctx context.Context, f *authflow.Flow) error) error {
	f, err := flowFor(c, svc)
	if err != nil {
		return flowError(c, err)
	}
	if err := fn(c.UserContext(), f); err != nil {
		return flowError(c, err)
	}
	return c.JSON(f.Snapshot())
}
