package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/khidmaapp/availability/internal/plan"
)

func TestUpdatePlanSendsWireFormat(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody plan.Wire
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret-token")
	wire := plan.Wire{
		Type:     plan.PlanTypeTime,
		Timezone: "Asia/Riyadh",
		Entries: []plan.Entry{
			{DayOfWeek: "mon", Seats: 2, StartTime: "09:00", EndTime: "17:00"},
		},
	}
	if err := c.UpdatePlan(context.Background(), "listing-1", wire); err != nil {
		t.Fatal(err)
	}

	if gotPath != "/v1/listings/listing-1/availability-plan" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody.Type != plan.PlanTypeTime || len(gotBody.Entries) != 1 {
		t.Fatalf("body = %+v", gotBody)
	}
}

func TestListExceptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"exceptions": []plan.ExceptionResource{
				{ID: "exc-1", Start: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), Seats: 0},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	got, err := c.ListExceptions(context.Background(), "listing-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "exc-1" || got[0].Seats != 0 {
		t.Fatalf("exceptions = %+v", got)
	}
}

func TestDeleteExceptionsSkipsEmpty(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	if err := c.DeleteExceptions(context.Background(), "listing-1", nil); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("no request expected for an empty id list")
	}
}

func TestNon2xxSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"listing not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	err := c.EnsureOpen(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
}
