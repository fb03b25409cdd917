package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ivivacare/smartclinic/internal/hospital"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRegistry builds a registry against a fake hospital backend and
// returns the registry plus a counter of backend calls received.
func newTestRegistry(t *testing.T, handler http.HandlerFunc) (*Registry, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := hospital.NewClient(srv.URL, "test-token", "0", discardLogger())
	reg := NewRegistry(client, discardLogger())
	reg.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	return reg, &calls
}

func TestDispatchUnknownTool(t *testing.T) {
	reg, calls := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})

	out := reg.Dispatch(context.Background(), "summon_dragon", nil)
	if out.Kind != OutcomeFailure {
		t.Fatalf("Kind = %v, want %v", out.Kind, OutcomeFailure)
	}
	if !strings.Contains(out.Err, "summon_dragon") {
		t.Errorf("Err = %q, want tool name mentioned", out.Err)
	}
	if calls.Load() != 0 {
		t.Errorf("backend calls = %d, want 0", calls.Load())
	}
}

func TestDispatchMissingRequired(t *testing.T) {
	reg, calls := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})

	out := reg.Dispatch(context.Background(), "create_walkin", map[string]string{
		"resource_id": "77",
		"session_id":  "  ", // blank counts as missing
	})
	if out.Kind != OutcomeNeedsParameters {
		t.Fatalf("Kind = %v, want %v", out.Kind, OutcomeNeedsParameters)
	}
	if out.Requirement == nil {
		t.Fatal("Requirement is nil")
	}
	if out.Requirement.ToolName != "create_walkin" {
		t.Errorf("ToolName = %q", out.Requirement.ToolName)
	}
	msg := out.Requirement.UserMessage
	for _, want := range []string{"session_id", "session_date", "from_time", "patient_id", "Please provide"} {
		if !strings.Contains(msg, want) {
			t.Errorf("UserMessage = %q, missing %q", msg, want)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("backend calls = %d, want 0 when parameters are missing", calls.Load())
	}
}

func TestDispatchSuccess(t *testing.T) {
	reg, calls := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"VISITID": "901"})
	})

	out := reg.Dispatch(context.Background(), "create_visit", map[string]string{
		"appointment_id": "314",
	})
	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v, want %v (err %q)", out.Kind, OutcomeSuccess, out.Err)
	}
	if out.Result == nil {
		t.Error("Result is nil")
	}
	if calls.Load() != 1 {
		t.Errorf("backend calls = %d, want exactly 1", calls.Load())
	}
}

func TestDispatchBackendFailure(t *testing.T) {
	reg, calls := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session closed", http.StatusConflict)
	})

	out := reg.Dispatch(context.Background(), "create_walkin", map[string]string{
		"resource_id":  "77",
		"session_id":   "5",
		"session_date": "2026-03-14",
		"from_time":    "09:30:00",
		"patient_id":   "1001",
	})
	if out.Kind != OutcomeFailure {
		t.Fatalf("Kind = %v, want %v", out.Kind, OutcomeFailure)
	}
	if out.Err == "" {
		t.Error("Err is empty")
	}
	// No retry: the booking endpoint must have been hit exactly once.
	if calls.Load() != 1 {
		t.Errorf("backend calls = %d, want exactly 1", calls.Load())
	}
}

func TestDispatchDateDefaults(t *testing.T) {
	var gotDate string
	reg, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		gotDate = r.URL.Query().Get("SessionDate")
		json.NewEncoder(w).Encode([]any{})
	})

	params := map[string]string{"resource_id": "77", "session_id": "5"}
	out := reg.Dispatch(context.Background(), "get_session_slots", params)
	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v (err %q)", out.Kind, out.Err)
	}
	if want := "2026-03-14T00:00:00.000Z"; gotDate != want {
		t.Errorf("SessionDate = %q, want %q", gotDate, want)
	}
	if _, ok := params["session_date"]; ok {
		t.Error("caller's parameter map was mutated by default filling")
	}
}

func TestIdentityParamsNeverDefaulted(t *testing.T) {
	reg, calls := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})

	// Every tool with a required identity parameter must report
	// NeedsParameters on an empty parameter map, never invent a value.
	for _, name := range reg.Names() {
		req, ok := reg.Requirements(name)
		if !ok {
			t.Fatalf("Requirements(%q) missing", name)
		}
		hasIdentity := false
		for _, p := range req.Required {
			if IsIdentityParam(p) {
				hasIdentity = true
			}
		}
		if !hasIdentity {
			continue
		}
		out := reg.Dispatch(context.Background(), name, map[string]string{})
		if out.Kind != OutcomeNeedsParameters {
			t.Errorf("%s: Kind = %v, want %v", name, out.Kind, OutcomeNeedsParameters)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("backend calls = %d, want 0", calls.Load())
	}
}

func TestDispatchPanicRecovery(t *testing.T) {
	reg, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})
	reg.tools["get_today_appointments"].Handler = func(ctx context.Context, p map[string]string) (any, error) {
		panic("boom")
	}

	out := reg.Dispatch(context.Background(), "get_today_appointments", nil)
	if out.Kind != OutcomeFailure {
		t.Fatalf("Kind = %v, want %v", out.Kind, OutcomeFailure)
	}
	if !strings.Contains(out.Err, "boom") {
		t.Errorf("Err = %q, want panic value included", out.Err)
	}
}

func TestFindResourcesDefaults(t *testing.T) {
	var body map[string]any
	reg, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode([]any{})
	})

	out := reg.Dispatch(context.Background(), "get_user_dataset", map[string]string{})
	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v (err %q)", out.Kind, out.Err)
	}
	if got := body["RESOURCETYPE"]; got != "1" {
		t.Errorf("RESOURCETYPE = %v, want \"1\"", got)
	}
	if got := body["FROMDATE"]; got != "2026-03-14" {
		t.Errorf("FROMDATE = %v, want the injected current date", got)
	}
}

func TestSpecialtiesToolFiltersQuery(t *testing.T) {
	reg, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"Codes": map[string]any{
				"SPECIALITY": []map[string]string{
					{"CODE": "CARD", "DESCRIPTION": "Cardiology"},
					{"CODE": "DERM", "DESCRIPTION": "Dermatology"},
					{"CODE": "ORTH", "DESCRIPTION": "Orthopedics"},
				},
			},
		})
	})

	out := reg.Dispatch(context.Background(), "get_doctor_specialties", map[string]string{
		"query": "heart and cardiology",
	})
	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v (err %q)", out.Kind, out.Err)
	}
	res, ok := out.Result.(SpecialtyResult)
	if !ok {
		t.Fatalf("Result type %T", out.Result)
	}
	if len(res.Specialties) != 1 || res.Specialties[0].Code != "CARD" {
		t.Errorf("Specialties = %+v, want only Cardiology", res.Specialties)
	}
	if res.IsFullList {
		t.Error("IsFullList = true for a specific query")
	}
}

func TestCatalogListsEveryTool(t *testing.T) {
	reg, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})

	names := reg.Names()
	if len(names) != 13 {
		t.Fatalf("len(Names()) = %d, want 13", len(names))
	}
	catalog := reg.Catalog()
	for _, name := range names {
		if !strings.Contains(catalog, name) {
			t.Errorf("catalog missing %q", name)
		}
	}
	if !strings.Contains(catalog, "Required parameters: appointment_id") {
		t.Error("catalog does not state required parameters for create_visit")
	}
}
