package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/npmart/storefront/internal/account"
	"github.com/npmart/storefront/internal/middleware"
)

// RegisterMeRoutes exposes the signed-in account.
func RegisterMeRoutes(r fiber.Router, svc *services) {
	r.Get("/me", func(c *fiber.Ctx) error {
		id := middleware.AccountIDFrom(c)
		acc, err := svc.accounts.GetAccount(c.UserContext(), id)
		if errors.Is(err, account.ErrNotFound) {
			return fiber.NewError(http.StatusUnauthorized, "account not found")
		}
		if err != nil {
			return err
		}

		resp := fiber.Map{"account": acc}
		if acc.Role == account.RoleSeller {
			profile, err := svc.accounts.SellerProfileFor(c.UserContext(), acc.ID)
			switch {
			case err == nil:
				resp["seller"] = profile
			case !errors.Is(err, account.ErrNotFound):
				return err
			}
		}
		return c.JSON(resp)
	})
}
