package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticket-ledger/internal/model"
)

// Summary: GET /v1/event
func (h *LedgerHandler) Summary(c echo.Context) error {
    return c.JSON(http.StatusOK, h.Ledger.Summary())
}

// Buyers: GET /v1/event/buyers, in first-purchase order.
func (h *LedgerHandler) Buyers(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"buyers": h.Ledger.Buyers()})
}

// BuyerTickets: GET /v1/event/buyers/:actor/tickets.  An unknown buyer has
// no tickets rather than being an error.
func (h *LedgerHandler) BuyerTickets(c echo.Context) error {
    buyer, err := model.ParseActorID(c.Param("actor"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid actor id"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "buyer":   buyer,
        "tickets": h.Ledger.BuyerTickets(buyer),
    })
}

// State: GET /v1/event/state returns the full record, settlement progress
// included.
func (h *LedgerHandler) State(c echo.Context) error {
    return c.JSON(http.StatusOK, h.Ledger.State())
}
