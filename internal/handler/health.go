package handler // declare the package name; contains HTTP handlers

import (
    "net/http" // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project

    "github.com/iliyamo/event-ticket-ledger/internal/ledger"
)

// Health returns a liveness endpoint for load balancers.  It reports the
// event's phase so a probe can tell an idle ledger from a settled one.
func Health(a *ledger.Actor) echo.HandlerFunc {
    return func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{
            "status": "ok",
            "phase":  a.Phase(),
        })
    }
}
