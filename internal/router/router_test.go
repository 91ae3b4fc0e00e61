package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/event-ticket-ledger/internal/handler"
	"github.com/iliyamo/event-ticket-ledger/internal/ledger"
	"github.com/iliyamo/event-ticket-ledger/internal/model"
	"github.com/iliyamo/event-ticket-ledger/internal/token"
	"github.com/iliyamo/event-ticket-ledger/internal/utils"
)

const secret = "test-secret"

type server struct {
	e     *echo.Echo
	mt    *token.Multitoken
	actor *ledger.Actor
}

func newServer(t *testing.T) *server {
	t.Helper()
	mt := token.NewMultitoken()
	self := model.ActorIDFromSeed("ledger")
	quiet := log.New("test")
	quiet.SetLevel(log.OFF)
	a := ledger.New(model.ActorIDFromSeed("owner"), model.ActorIDFromSeed("token"),
		token.NewClient(self, token.LocalCaller{Handler: mt}), ledger.WithLogger(quiet))

	e := echo.New()
	RegisterRoutes(e, a)
	RegisterLedger(e, handler.NewLedgerHandler(a, 2*time.Second, quiet), secret, Mounts{})
	return &server{e: e, mt: mt, actor: a}
}

func bearer(t *testing.T, actor model.ActorID) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, 1, actor, 5)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return "Bearer " + tok.Token
}

func (s *server) do(method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestLedgerFlowOverHTTP(t *testing.T) {
	s := newServer(t)
	creator := model.ActorIDFromSeed("creator")
	buyer := model.ActorIDFromSeed("buyer")

	rec := s.do(http.MethodPost, "/v1/event", bearer(t, creator),
		`{"name":"Stromae","description":"Multitude tour","total_tickets":100,"date":1700000000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	var created model.Created
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.Creator != creator || created.TotalTickets != 100 {
		t.Fatalf("unexpected ack %+v", created)
	}

	rec = s.do(http.MethodPost, "/v1/event/purchase", bearer(t, buyer),
		`{"amount":1,"metadata":[{"title":"Row A seat 1"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("purchase status = %d body=%s", rec.Code, rec.Body)
	}

	rec = s.do(http.MethodGet, "/v1/event", "", "")
	var summary model.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TicketsRemaining != 99 || summary.Name != "Stromae" {
		t.Fatalf("unexpected summary %+v", summary)
	}

	rec = s.do(http.MethodGet, "/v1/event/buyers/"+buyer.String()+"/tickets", "", "")
	var tickets struct {
		Tickets []model.TicketMetadata `json:"tickets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &tickets); err != nil {
		t.Fatalf("decode tickets: %v", err)
	}
	if len(tickets.Tickets) != 1 || tickets.Tickets[0].Title != "Row A seat 1" {
		t.Fatalf("unexpected tickets %s", rec.Body)
	}

	if rec := s.do(http.MethodPost, "/v1/event/settle", bearer(t, buyer), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("settle by buyer status = %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/v1/event/settle", bearer(t, creator), ""); rec.Code != http.StatusOK {
		t.Fatalf("settle status = %d body=%s", rec.Code, rec.Body)
	}
	if s.actor.Phase() != model.PhaseSettled {
		t.Fatalf("phase = %s", s.actor.Phase())
	}
	if rec := s.do(http.MethodPost, "/v1/event/purchase", bearer(t, buyer), `{"amount":1,"metadata":[{}]}`); rec.Code != http.StatusConflict {
		t.Fatalf("purchase after settle status = %d", rec.Code)
	}
}

func TestLedgerErrorMapping(t *testing.T) {
	s := newServer(t)
	creator := model.ActorIDFromSeed("creator")
	if rec := s.do(http.MethodPost, "/v1/event", bearer(t, creator), `{"name":"n","total_tickets":2}`); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		body   string
		want   int
	}{
		{name: "no token", method: http.MethodPost, path: "/v1/event/purchase", body: `{"amount":1,"metadata":[{}]}`, want: http.StatusUnauthorized},
		{name: "bad body", method: http.MethodPost, path: "/v1/event/purchase", auth: bearer(t, creator), body: `{"amount":`, want: http.StatusBadRequest},
		{name: "zero amount", method: http.MethodPost, path: "/v1/event/purchase", auth: bearer(t, creator), body: `{"amount":0,"metadata":[]}`, want: http.StatusBadRequest},
		{name: "metadata mismatch", method: http.MethodPost, path: "/v1/event/purchase", auth: bearer(t, creator), body: `{"amount":2,"metadata":[{}]}`, want: http.StatusBadRequest},
		{name: "too many", method: http.MethodPost, path: "/v1/event/purchase", auth: bearer(t, creator), body: `{"amount":3,"metadata":[{},{},{}]}`, want: http.StatusBadRequest},
		{name: "create twice", method: http.MethodPost, path: "/v1/event", auth: bearer(t, creator), body: `{"name":"again","total_tickets":1}`, want: http.StatusConflict},
		{name: "bad creator", method: http.MethodPost, path: "/v1/event", auth: bearer(t, creator), body: `{"creator":"zz","total_tickets":1}`, want: http.StatusBadRequest},
		{name: "bad buyer id", method: http.MethodGet, path: "/v1/event/buyers/nothex/tickets", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := s.do(tt.method, tt.path, tt.auth, tt.body); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tt.want, rec.Body)
			}
		})
	}
	if got := s.actor.Summary().TicketsRemaining; got != 2 {
		t.Fatalf("rejected requests changed state: remaining = %d", got)
	}
}

func TestHealthReportsPhase(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), string(model.PhaseUninitialized)) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body)
	}
}

func TestPurchaseAcceptsTicketsWithoutMetadata(t *testing.T) {
	s := newServer(t)
	creator := model.ActorIDFromSeed("creator")
	buyer := model.ActorIDFromSeed("buyer")
	if rec := s.do(http.MethodPost, "/v1/event", bearer(t, creator), `{"name":"n","total_tickets":10}`); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	rec := s.do(http.MethodPost, "/v1/event/purchase", bearer(t, buyer),
		`{"amount":2,"metadata":[null,{"title":"a"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("purchase status = %d body=%s", rec.Code, rec.Body)
	}
	if got := s.actor.Summary().TicketsRemaining; got != 8 {
		t.Fatalf("remaining = %d, want 8", got)
	}

	rec = s.do(http.MethodGet, "/v1/event/buyers/"+buyer.String()+"/tickets", "", "")
	var out struct {
		Tickets []*model.TicketMetadata `json:"tickets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode tickets: %v", err)
	}
	if len(out.Tickets) != 2 || out.Tickets[0] != nil || out.Tickets[1] == nil || out.Tickets[1].Title != "a" {
		t.Fatalf("expected [null,{a}], got %s", rec.Body)
	}

	if rec := s.do(http.MethodPost, "/v1/event/settle", bearer(t, creator), ""); rec.Code != http.StatusOK {
		t.Fatalf("settle status = %d body=%s", rec.Code, rec.Body)
	}
}
