package hospital

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient returns a client pointed at a fake HIS that records
// requests and serves canned responses per path.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", "3598", nil)
}

func TestSpecialties(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/his/AppointmentsAPI/InitAll" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"Codes": map[string]any{
				"SPECIALITY": []map[string]string{
					{"CODE": "CARD", "DESCRIPTION": "CARDIOLOGY"},
					{"CODE": "DERM", "DESCRIPTION": "DERMATOLOGY"},
				},
			},
		})
	})

	specs, err := c.Specialties(context.Background())
	if err != nil {
		t.Fatalf("Specialties() error: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specialties, want 2", len(specs))
	}
	if specs[0].Code != "CARD" || specs[0].Description != "CARDIOLOGY" {
		t.Errorf("specs[0] = %+v", specs[0])
	}
}

func TestSearchByIDNumber(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/clinicaldocs/Codes/SearchText" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("CodeName") != "CHECKIDNO" {
			t.Errorf("CodeName = %q", q.Get("CodeName"))
		}
		if q.Get("text") != "DD15021998" {
			t.Errorf("text = %q", q.Get("text"))
		}
		json.NewEncoder(w).Encode(map[string]any{"PatientId": 3598})
	})

	result, err := c.SearchByIDNumber(context.Background(), "DD15021998")
	if err != nil {
		t.Fatalf("SearchByIDNumber() error: %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok || m["PatientId"] != float64(3598) {
		t.Errorf("result = %v", result)
	}
}

func TestTodayAppointmentsUsesConfiguredVisit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("VisitId") != "3598" {
			t.Errorf("VisitId = %q, want configured 3598", q.Get("VisitId"))
		}
		if q.Get("QueryName") != "GET_TODAYAPPTS" {
			t.Errorf("QueryName = %q", q.Get("QueryName"))
		}
		json.NewEncoder(w).Encode([]any{})
	})

	if _, err := c.TodayAppointments(context.Background()); err != nil {
		t.Fatalf("TodayAppointments() error: %v", err)
	}
}

func TestSessionSlotsDateFormat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("SessionDate"); got != "2025-06-25T00:00:00.000Z" {
			t.Errorf("SessionDate = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"slots": []any{}})
	})

	if _, err := c.SessionSlots(context.Background(), "2", "2025-06-25", "363"); err != nil {
		t.Fatalf("SessionSlots() error: %v", err)
	}
}

func TestCreateWalkinParams(t *testing.T) {
	var called int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called++
		q := r.URL.Query()
		for key, want := range map[string]string{
			"ResourceId":  "2",
			"SessionId":   "363",
			"SessionDate": "2025-06-25",
			"FromTime":    "07:10:00",
			"PatientId":   "3598",
		} {
			if q.Get(key) != want {
				t.Errorf("%s = %q, want %q", key, q.Get(key), want)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"AppointmentId": 1820})
	})

	_, err := c.CreateWalkin(context.Background(), WalkinParams{
		ResourceID:  "2",
		SessionID:   "363",
		SessionDate: "2025-06-25",
		FromTime:    "07:10:00",
		PatientID:   "3598",
	})
	if err != nil {
		t.Fatalf("CreateWalkin() error: %v", err)
	}
	if called != 1 {
		t.Errorf("CreateWalkin made %d calls, want exactly 1", called)
	}
}

func TestFindResourcesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.URL.Query().Get("QueryName"); got != "APPOINTMENTFINDRESC" {
			t.Errorf("QueryName = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["FROMDATE"] != "2025-06-25" {
			t.Errorf("FROMDATE = %v", body["FROMDATE"])
		}
		if body["SPECIALITYID"] != nil {
			t.Errorf("SPECIALITYID = %v, want null", body["SPECIALITYID"])
		}
		json.NewEncoder(w).Encode(map[string]any{})
	})

	_, err := c.FindResources(context.Background(), FindResourcesQuery{
		ResourceType: "1",
		DateFrom:     "2025-06-25",
		DateTo:       "2025-06-25",
	})
	if err != nil {
		t.Fatalf("FindResources() error: %v", err)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})

	if _, err := c.InitAll(context.Background()); err == nil {
		t.Fatal("InitAll() expected error for 401 response")
	}
}
