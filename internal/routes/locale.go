package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/npmart/storefront/internal/locale"
	"github.com/npmart/storefront/internal/middleware"
)

type countryView struct {
	locale.Country
	SellerEligible bool `json:"seller_eligible"`
}

func viewOf(c locale.Country) countryView {
	return countryView{Country: c, SellerEligible: locale.IsSellerEligible(c)}
}

// resolvedState returns the session's resolution state, running the initial
// resolution first if this is the session's first country-dependent request.
// Clients may report device coordinates as lat/lon query parameters.
func resolvedState(c *fiber.Ctx, svc *services) *locale.State {
	st := svc.sessions.Ensure(middleware.SessionIDFrom(c))
	svc.resolver.Resolve(c.UserContext(), st, locale.ParseLocator(c.Query("lat"), c.Query("lon")))
	return st
}

// RegisterLocaleRoutes wires country resolution and selection.
func RegisterLocaleRoutes(r fiber.Router, svc *services) {
	r.Get("/locale", func(c *fiber.Ctx) error {
		st := resolvedState(c, svc)
		return c.JSON(fiber.Map{
			"session_id":   st.SessionID(),
			"active":       viewOf(st.Active()),
			"is_resolving": st.IsResolving(),
		})
	})

	r.Put("/locale", func(c *fiber.Ctx) error {
		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		st := svc.sessions.Ensure(middleware.SessionIDFrom(c))
		persisted := true
		if err := svc.resolver.SwitchCountry(c.UserContext(), st, req.Code); err != nil {
			if errors.Is(err, locale.ErrInvalidCountryCode) {
				return fiber.NewError(http.StatusBadRequest, err.Error())
			}
			svc.logger.Warn("locale switch not persisted", slog.String("session_id", st.SessionID()), slog.Any("error", err))
			persisted = false
		}
		return c.JSON(fiber.Map{
			"session_id": st.SessionID(),
			"active":     viewOf(st.Active()),
			"persisted":  persisted,
		})
	})

	r.Get("/locale/countries", func(c *fiber.Ctx) error {
		all := svc.resolver.ListContexts()
		out := make([]countryView, 0, len(all))
		for _, country := range all {
			out = append(out, viewOf(country))
		}
		return c.JSON(fiber.Map{"countries": out})
	})

	r.Get("/locale/price", func(c *fiber.Ctx) error {
		amount, err := decimal.NewFromString(c.Query("amount"))
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "amount must be a decimal number")
		}
		discount := c.QueryInt("discount", 0)
		if discount < 0 || discount > 100 {
			return fiber.NewError(http.StatusBadRequest, "discount must be between 0 and 100")
		}
		country := resolvedState(c, svc).Active()
		resp := fiber.Map{
			"country":  country.Code,
			"currency": country.CurrencyCode,
			"original": country.FormatAmount(amount),
		}
		if discount > 0 {
			resp["discounted"] = country.FormatAmount(locale.Discounted(amount, discount))
		}
		return c.JSON(resp)
	})
}
