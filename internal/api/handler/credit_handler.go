package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

// CreditHandler handles HTTP requests for credit balances and grants.
type CreditHandler struct {
	ledger   ports.CreditLedger
	notifier ports.BalanceNotifier
}

func NewCreditHandler(ledger ports.CreditLedger, notifier ports.BalanceNotifier) *CreditHandler {
	return &CreditHandler{ledger: ledger, notifier: notifier}
}

type balanceResponse struct {
	Balance int `json:"balance"`
}

type grantRequest struct {
	Principal string `json:"principal" validate:"required"`
	Amount    int    `json:"amount"    validate:"required,gt=0"`
}

// Balance handles GET /v1/credits — the caller's current balance.
//
// @Summary      Get the current credit balance
// @Tags         credits
// @Produce      json
// @Security     BearerAuth
// @Param        X-Device-ID  header    string  false  "Device id, required for anonymous callers"
// @Success      200          {object}  balanceResponse
// @Failure      400          {object}  errorResponse
// @Router       /v1/credits [get]
func (h *CreditHandler) Balance(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	balance, err := h.ledger.Balance(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balanceResponse{Balance: balance})
}

// Stream handles GET /v1/credits/stream — a server-sent event stream of
// balance changes for the caller, opened with an initial snapshot.
//
// @Summary      Stream balance changes as server-sent events
// @Tags         credits
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        X-Device-ID  header  string  false  "Device id, required for anonymous callers"
// @Success      200
// @Failure      400  {object}  errorResponse
// @Router       /v1/credits/stream [get]
func (h *CreditHandler) Stream(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, cancel := h.notifier.Subscribe(p.Key())
	defer cancel()

	balance, err := h.ledger.Balance(c.Request().Context(), p)
	if err != nil {
		return err
	}
	if err := writeBalanceEvent(w, ports.BalanceEvent{
		Principal: p.Key(),
		Balance:   balance,
		Cause:     "snapshot",
	}); err != nil {
		return nil
	}

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case ev := <-events:
			if err := writeBalanceEvent(w, ev); err != nil {
				// Client went away mid-write.
				return nil
			}
		}
	}
}

func writeBalanceEvent(w *echo.Response, ev ports.BalanceEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: balance\ndata: %s\n\n", payload); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// Grant handles POST /v1/credits/grant — an administrative top-up.
//
// @Summary      Grant credits to a principal
// @Tags         credits
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      grantRequest  true  "Grant details"
// @Success      200   {object}  balanceResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /v1/credits/grant [post]
func (h *CreditHandler) Grant(c echo.Context) error {
	var req grantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	balance, err := h.ledger.Grant(c.Request().Context(), req.Principal, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balanceResponse{Balance: balance})
}
