package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/example/parkpass/internal/models"
)

// fakeCartServer replays the delete-then-recreate reconciliation from
// the upstream side and records the call order.
type fakeCartServer struct {
	mu        sync.Mutex
	calls     []string
	serverIDs []string
	total     float64
	failOnPut int // 1-based index of the creation POST to fail, 0 = never
	posted    int
}

func (f *fakeCartServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/cart":
			items := make([]map[string]any, 0, len(f.serverIDs))
			for _, id := range f.serverIDs {
				items = append(items, map[string]any{"id": id})
			}
			json.NewEncoder(w).Encode(map[string]any{
				"items":       items,
				"final_total": f.total,
			})
		case r.Method == http.MethodDelete:
			// Swallowed by the client regardless.
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == "/cart/items":
			f.posted++
			if f.failOnPut == f.posted {
				w.WriteHeader(http.StatusUnprocessableEntity)
				json.NewEncoder(w).Encode(map[string]any{"message": "slot sold out"})
				return
			}
			f.serverIDs = append(f.serverIDs, "srv-new")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"id": "srv-new"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func testItems(t *testing.T, n int) []models.CartLineItem {
	t.Helper()
	items := make([]models.CartLineItem, 0, n)
	for i := 0; i < n; i++ {
		item, err := models.NewAttractionItem("attr-1", "slot-1", "2026-10-01", 1, 500)
		if err != nil {
			t.Fatalf("build item: %v", err)
		}
		items = append(items, item)
	}
	return items
}

func TestReplaceDeletesBeforeCreating(t *testing.T) {
	fake := &fakeCartServer{serverIDs: []string{"srv-1", "srv-2"}, total: 1500}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	svc := NewCartSyncService(NewBackend(srv.URL, 0))
	total, err := svc.Replace(context.Background(), "tok", testItems(t, 3))
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if total != 1500 {
		t.Errorf("server total = %v, want 1500", total)
	}

	want := []string{
		"GET /cart",
		"DELETE /cart/items/srv-1",
		"DELETE /cart/items/srv-2",
		"POST /cart/items",
		"POST /cart/items",
		"POST /cart/items",
		"GET /cart",
	}
	if len(fake.calls) != len(want) {
		t.Fatalf("call sequence %v, want %v", fake.calls, want)
	}
	for i := range want {
		if fake.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, fake.calls[i], want[i])
		}
	}
}

func TestReplaceAbortsOnCreationFailure(t *testing.T) {
	fake := &fakeCartServer{total: 999, failOnPut: 2}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	svc := NewCartSyncService(NewBackend(srv.URL, 0))
	_, err := svc.Replace(context.Background(), "tok", testItems(t, 3))
	if err == nil {
		t.Fatal("expected creation failure to abort reconciliation")
	}

	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected normalized BackendError, got %T: %v", err, err)
	}
	if be.Message != "slot sold out" {
		t.Errorf("error message = %q", be.Message)
	}

	// The final total re-read must not have happened.
	for _, call := range fake.calls[1:] {
		if call == "GET /cart" {
			t.Error("total re-read issued despite aborted creation")
		}
	}
}

func TestReplaceRejectsNonPositiveTotal(t *testing.T) {
	fake := &fakeCartServer{total: 0}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	svc := NewCartSyncService(NewBackend(srv.URL, 0))
	_, err := svc.Replace(context.Background(), "tok", testItems(t, 1))
	if !errors.Is(err, ErrServerTotalInvalid) {
		t.Errorf("expected ErrServerTotalInvalid, got %v", err)
	}
}

func TestReplaceSendsTypedItemBodies(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"items": []any{}, "total": 850})
		case r.Method == http.MethodPost:
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			bodies = append(bodies, body)
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	attraction, _ := models.NewAttractionItem("attr-1", "slot-1", "2026-10-01", 2, 250)
	attraction.Addons = []models.AddonSelection{{AddonID: "locker", Quantity: 1, Price: 50}}
	combo, _ := models.NewComboItem("combo-9", "cslot-3", "2026-10-02", 1, 300)

	svc := NewCartSyncService(NewBackend(srv.URL, 0))
	if _, err := svc.Replace(context.Background(), "tok", []models.CartLineItem{attraction, combo}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	if len(bodies) != 2 {
		t.Fatalf("expected 2 creation bodies, got %d", len(bodies))
	}

	first := bodies[0]
	if first["item_type"] != "attraction" || first["attraction_id"] != "attr-1" || first["slot_id"] != "slot-1" {
		t.Errorf("attraction body wrong: %v", first)
	}
	if first["booking_date"] != "2026-10-01" || first["quantity"] != float64(2) {
		t.Errorf("attraction scheduling fields wrong: %v", first)
	}
	addons, _ := first["addons"].([]any)
	if len(addons) != 1 {
		t.Errorf("addons not forwarded: %v", first["addons"])
	}

	second := bodies[1]
	if second["item_type"] != "combo" || second["combo_id"] != "combo-9" || second["combo_slot_id"] != "cslot-3" {
		t.Errorf("combo body wrong: %v", second)
	}
	if _, present := second["attraction_id"]; present {
		t.Error("combo body must not carry attraction fields")
	}
}

func TestExtractTotalCandidateOrder(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    float64
		ok      bool
	}{
		{"canonical", `{"final_total": 1150}`, 1150, true},
		{"camel drift", `{"finalAmount": 900}`, 900, true},
		{"first candidate wins", `{"total": 5, "final_total": 10}`, 10, true},
		{"nested cart envelope", `{"cart": {"grand_total": 777}}`, 777, true},
		{"data envelope", `{"data": {"amount": 12.5}}`, 12.5, true},
		{"string number", `{"total_amount": "450.00"}`, 450, true},
		{"nothing recognizable", `{"foo": 1}`, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var payload map[string]json.RawMessage
			if err := json.Unmarshal([]byte(tc.payload), &payload); err != nil {
				t.Fatalf("bad fixture: %v", err)
			}
			got, ok := extractTotal(payload)
			if ok != tc.ok || got != tc.want {
				t.Errorf("extractTotal(%s) = (%v, %v), want (%v, %v)", tc.payload, got, ok, tc.want, tc.ok)
			}
		})
	}
}
