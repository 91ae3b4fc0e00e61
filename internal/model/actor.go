package model

import (
    "encoding/hex"
    "errors"
    "strings"

    "golang.org/x/crypto/blake2b"
)

// ActorID identifies a participant of the ledger: the owner that initialised
// the event actor, the event creator, ticket buyers and the token actor
// itself.  It is a 32-byte address rendered as lowercase hex in JSON and
// logs.  The all-zero value is the null identity and is never a valid
// caller.
type ActorID [32]byte

// ZeroActorID is the null identity.
var ZeroActorID ActorID

// ErrInvalidActorID is returned when an actor id cannot be parsed.
var ErrInvalidActorID = errors.New("invalid actor id")

// ParseActorID decodes a 64 character hex string, with or without a 0x
// prefix, into an ActorID.
func ParseActorID(s string) (ActorID, error) {
    var id ActorID
    s = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "0x")
    if len(s) != hex.EncodedLen(len(id)) {
        return ZeroActorID, ErrInvalidActorID
    }
    if _, err := hex.Decode(id[:], []byte(s)); err != nil {
        return ZeroActorID, ErrInvalidActorID
    }
    return id, nil
}

// ActorIDFromSeed derives a stable actor id from an arbitrary seed such as
// an account email or a service name.  The id is the BLAKE2b-256 digest of
// the seed, so the same seed always maps to the same identity.
func ActorIDFromSeed(seed string) ActorID {
    return ActorID(blake2b.Sum256([]byte(seed)))
}

// IsZero reports whether the id is the null identity.
func (a ActorID) IsZero() bool { return a == ZeroActorID }

// String returns the lowercase hex form without prefix.
func (a ActorID) String() string { return hex.EncodeToString(a[:]) }

// MarshalText implements encoding.TextMarshaler so ids read as hex in JSON
// documents and as JSON object keys.
func (a ActorID) MarshalText() ([]byte, error) {
    return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *ActorID) UnmarshalText(b []byte) error {
    id, err := ParseActorID(string(b))
    if err != nil {
        return err
    }
    *a = id
    return nil
}
