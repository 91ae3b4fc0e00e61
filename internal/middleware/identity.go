package middleware

// identity.go holds the context keys JWTAuth fills and the accessors
// handlers and other middleware use to read them.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticket-ledger/internal/model"
)

const (
    actorIDKey = "actor_id"
    userIDKey  = "user_id"
)

// CallerID returns the ledger identity of the authenticated caller.  ok is
// false on routes that are not behind JWTAuth.
func CallerID(c echo.Context) (model.ActorID, bool) {
    id, ok := c.Get(actorIDKey).(model.ActorID)
    if !ok || id.IsZero() {
        return model.ZeroActorID, false
    }
    return id, true
}

// UserID returns the authenticated account id, or 0.
func UserID(c echo.Context) uint64 {
    id, _ := c.Get(userIDKey).(uint64)
    return id
}

// subject identifies the caller for rate limiting.  It returns "anon" when
// no one is authenticated.
func subject(c echo.Context) string {
    if id, ok := CallerID(c); ok {
        return id.String()
    }
    if uid := UserID(c); uid != 0 {
        return strconv.FormatUint(uid, 10)
    }
    return "anon"
}
