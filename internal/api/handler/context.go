package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tommypurcell/autoscape-api/internal/core/domain"
)

// ctxPrincipal builds the caller identity from the claims the auth middleware
// injected:
//   - user_id present → authenticated principal with its role.
//   - otherwise → anonymous principal, which requires a device id; without one
//     there is nothing to track the free allowance against, so reject with 400.
func ctxPrincipal(c echo.Context) (domain.Principal, error) {
	userID, _ := c.Get("user_id").(string)
	if userID != "" {
		role, _ := c.Get("role").(string)
		return domain.Principal{ID: userID, Role: role}, nil
	}

	deviceID, _ := c.Get("device_id").(string)
	if deviceID == "" {
		return domain.Principal{}, echo.NewHTTPError(http.StatusBadRequest, "missing X-Device-ID header")
	}
	return domain.AnonymousPrincipal(deviceID), nil
}

// ctxUser is ctxPrincipal for routes behind the required-auth middleware;
// an anonymous caller here means the middleware chain is misconfigured.
func ctxUser(c echo.Context) (domain.Principal, error) {
	p, err := ctxPrincipal(c)
	if err != nil {
		return domain.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	if p.Anonymous() {
		return domain.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}
