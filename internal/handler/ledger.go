package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/labstack/gommon/log"

    "github.com/iliyamo/event-ticket-ledger/internal/ledger"
    "github.com/iliyamo/event-ticket-ledger/internal/middleware"
    "github.com/iliyamo/event-ticket-ledger/internal/model"
)

// LedgerHandler exposes the event actor over HTTP.  Mutations run under
// Timeout, which bounds the wait for the actor's turn.  Token actor round
// trips of an operation that holds the turn are not cut short.
type LedgerHandler struct {
    Ledger  *ledger.Actor
    Timeout time.Duration
    Log     *log.Logger
}

func NewLedgerHandler(a *ledger.Actor, timeout time.Duration, l *log.Logger) *LedgerHandler {
    if l == nil {
        l = log.New("http")
    }
    return &LedgerHandler{Ledger: a, Timeout: timeout, Log: l}
}

// ----- DTOs -----

type createReq struct {
    Creator      string `json:"creator"` // hex actor id; defaults to the caller
    Name         string `json:"name"`
    Description  string `json:"description"`
    TotalTickets uint64 `json:"total_tickets"`
    Date         uint64 `json:"date"`
}

// Metadata holds one entry per ticket; null entries are tickets without
// metadata.
type purchaseReq struct {
    Amount   uint64                  `json:"amount"`
    Metadata []*model.TicketMetadata `json:"metadata"`
}

// Create: POST /v1/event
func (h *LedgerHandler) Create(c echo.Context) error {
    caller, ok := middleware.CallerID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req createReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    creator := caller
    if s := strings.TrimSpace(req.Creator); s != "" {
        id, err := model.ParseActorID(s)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid creator"})
        }
        creator = id
    }

    ctx, cancel := h.opContext(c)
    defer cancel()

    ack, err := h.Ledger.Create(ctx, ledger.CreateInput{
        Creator:      creator,
        Name:         req.Name,
        Description:  req.Description,
        TotalTickets: req.TotalTickets,
        Date:         req.Date,
    })
    if err != nil {
        return h.fail(c, "create", err)
    }
    return c.JSON(http.StatusCreated, ack)
}

// Purchase: POST /v1/event/purchase.  The buyer is the authenticated caller.
func (h *LedgerHandler) Purchase(c echo.Context) error {
    caller, ok := middleware.CallerID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req purchaseReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    ctx, cancel := h.opContext(c)
    defer cancel()

    ack, err := h.Ledger.Purchase(ctx, caller, req.Amount, req.Metadata)
    if err != nil {
        return h.fail(c, "purchase", err)
    }
    return c.JSON(http.StatusOK, ack)
}

// Settle: POST /v1/event/settle.  Only the event's creator may call it; a
// failed settlement can be retried and resumes where it stopped.
func (h *LedgerHandler) Settle(c echo.Context) error {
    caller, ok := middleware.CallerID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }

    ctx, cancel := h.opContext(c)
    defer cancel()

    ack, err := h.Ledger.Settle(ctx, caller)
    if err != nil {
        return h.fail(c, "settle", err)
    }
    return c.JSON(http.StatusOK, ack)
}

func (h *LedgerHandler) opContext(c echo.Context) (context.Context, context.CancelFunc) {
    if h.Timeout <= 0 {
        return context.WithCancel(c.Request().Context())
    }
    return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// fail maps a ledger error onto a status code.  Anything that is not a
// precondition or a deadline came from the token actor.
func (h *LedgerHandler) fail(c echo.Context, op string, err error) error {
    status := statusFor(err)
    if status >= http.StatusInternalServerError {
        h.Log.Errorf("%s failed: %v", op, err)
    }
    return c.JSON(status, echo.Map{"error": err.Error()})
}

func statusFor(err error) int {
    switch {
    case errors.Is(err, ledger.ErrInvalidAmount),
        errors.Is(err, ledger.ErrMetadataMismatch),
        errors.Is(err, ledger.ErrNotEnoughTickets):
        return http.StatusBadRequest
    case errors.Is(err, ledger.ErrZeroCaller):
        return http.StatusUnauthorized
    case errors.Is(err, ledger.ErrNotCreator):
        return http.StatusForbidden
    case errors.Is(err, ledger.ErrEventExists),
        errors.Is(err, ledger.ErrNotSelling),
        errors.Is(err, ledger.ErrSettlementInProgress):
        return http.StatusConflict
    case errors.Is(err, context.DeadlineExceeded):
        return http.StatusGatewayTimeout
    case errors.Is(err, context.Canceled):
        return http.StatusServiceUnavailable
    }
    return http.StatusBadGateway
}
