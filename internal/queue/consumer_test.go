package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/labstack/gommon/log"

    "github.com/iliyamo/event-ticket-ledger/internal/model"
)

func TestFromAck(t *testing.T) {
    at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    creator := model.ActorIDFromSeed("creator")
    buyer := model.ActorIDFromSeed("buyer")

    ev, ok := FromAck(creator, model.Created{Creator: creator, EventID: 0, TotalTickets: 100, Date: 7}, at)
    if !ok || ev.Kind != KindCreated || ev.TotalTickets != 100 || ev.Creator != creator {
        t.Fatalf("unexpected created event %+v", ev)
    }
    if ev.At != "2026-03-01T12:00:00Z" {
        t.Fatalf("unexpected timestamp %q", ev.At)
    }

    ev, ok = FromAck(buyer, model.Purchased{EventID: 0, Amount: 3}, at)
    if !ok || ev.Kind != KindPurchased || ev.Amount != 3 || ev.Caller != buyer {
        t.Fatalf("unexpected purchased event %+v", ev)
    }

    if _, ok := FromAck(buyer, "not an ack", at); ok {
        t.Fatalf("expected unknown ack to be ignored")
    }
}

func TestHandleMessageAppendsLines(t *testing.T) {
    dir := t.TempDir()
    c := &Consumer{Dir: dir, Log: log.New("test")}
    buyer := model.ActorIDFromSeed("buyer")

    for _, ack := range []any{model.Purchased{EventID: 0, Amount: 2}, model.Settled{EventID: 0}} {
        ev, _ := FromAck(buyer, ack, time.Unix(0, 0))
        body, err := json.Marshal(ev)
        if err != nil {
            t.Fatalf("marshal: %v", err)
        }
        if err := c.handleMessage(body); err != nil {
            t.Fatalf("handle: %v", err)
        }
    }

    raw, err := os.ReadFile(filepath.Join(dir, "ledger.log"))
    if err != nil {
        t.Fatalf("read journal: %v", err)
    }
    lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
    if len(lines) != 2 {
        t.Fatalf("expected 2 lines, got %q", raw)
    }
    if !strings.Contains(lines[0], "Tickets purchased") || !strings.Contains(lines[0], "amount=2") {
        t.Fatalf("unexpected first line %q", lines[0])
    }
    if !strings.Contains(lines[1], "Event settled") || !strings.Contains(lines[1], buyer.String()) {
        t.Fatalf("unexpected second line %q", lines[1])
    }
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
    c := &Consumer{Dir: t.TempDir(), Log: log.New("test")}
    if err := c.handleMessage([]byte("{")); err == nil {
        t.Fatalf("expected unmarshal error")
    }
}
