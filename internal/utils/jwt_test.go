package utils

import (
    "errors"
    "strings"
    "testing"

    "github.com/iliyamo/event-ticket-ledger/internal/model"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    actor := model.ActorIDFromSeed("alice")
    tok, err := NewAccessToken("secret", 42, actor, 5)
    if err != nil {
        t.Fatalf("new access token: %v", err)
    }
    id, err := ParseAccessToken("secret", tok.Token)
    if err != nil {
        t.Fatalf("parse: %v", err)
    }
    if id.Actor != actor || id.UserID != 42 {
        t.Fatalf("unexpected identity %+v", id)
    }
}

func TestParseAccessTokenRejects(t *testing.T) {
    actor := model.ActorIDFromSeed("alice")
    valid, err := NewAccessToken("secret", 1, actor, 5)
    if err != nil {
        t.Fatalf("new access token: %v", err)
    }
    expired, err := NewAccessToken("secret", 1, actor, -5)
    if err != nil {
        t.Fatalf("new access token: %v", err)
    }
    zero, err := NewAccessToken("secret", 1, model.ZeroActorID, 5)
    if err != nil {
        t.Fatalf("new access token: %v", err)
    }

    tests := []struct {
        name   string
        secret string
        raw    string
    }{
        {name: "wrong secret", secret: "other", raw: valid.Token},
        {name: "expired", secret: "secret", raw: expired.Token},
        {name: "null identity", secret: "secret", raw: zero.Token},
        {name: "garbage", secret: "secret", raw: "not.a.jwt"},
        {name: "tampered", secret: "secret", raw: swapPayload(valid.Token, expired.Token)},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            if _, err := ParseAccessToken(tt.secret, tt.raw); !errors.Is(err, ErrInvalidToken) {
                t.Fatalf("expected ErrInvalidToken, got %v", err)
            }
        })
    }
}

// swapPayload keeps a's header and signature but carries b's claims.
func swapPayload(a, b string) string {
    pa := strings.Split(a, ".")
    pb := strings.Split(b, ".")
    return pa[0] + "." + pb[1] + "." + pa[2]
}

func TestHashPasswordAndVerify(t *testing.T) {
    hash, err := HashPassword("hunter2", 4)
    if err != nil {
        t.Fatalf("hash: %v", err)
    }
    if !VerifyPassword(hash, "hunter2") {
        t.Fatalf("expected password to verify")
    }
    if VerifyPassword(hash, "hunter3") {
        t.Fatalf("expected wrong password to be rejected")
    }
}
