package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/event-ticket-ledger/internal/utils" // access token verification
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the bearer's identity into the request context.  The provided
// secret must match the one used when issuing tokens.  Handlers behind this
// middleware read the ledger caller with CallerID and the account with
// UserID.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header starts with "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Signature, expiry and a non-null subject are all checked here.
            id, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            c.Set(actorIDKey, id.Actor)
            c.Set(userIDKey, id.UserID)
            return next(c)
        }
    }
}
