// Package hospital provides a client for the hospital information
// system REST API. Every operation is a single bearer-authorized HTTP
// call that returns the decoded JSON payload or an error. There are no
// retries anywhere: walk-in and visit creation are not idempotent, and
// the agent guarantees at-most-once execution per tool invocation.
package hospital

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ivivacare/smartclinic/internal/httpkit"
)

// Client is a hospital information system REST API client.
type Client struct {
	baseURL    string
	token      string
	visitID    string // operational visit context for recordset queries
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new hospital API client. visitID is the
// operational visit context used by recordset queries (today's
// appointments, ongoing visits).
func NewClient(baseURL, token, visitID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		visitID: visitID,
		logger:  logger.With("client", "hospital"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30 * time.Second),
		),
	}
}

// Specialty is one entry from the SPECIALITY code table.
type Specialty struct {
	Code        string `json:"CODE"`
	Description string `json:"DESCRIPTION"`
}

// initAllPayload captures the part of the InitAll response we decode
// for specialty lookups. The full payload is much larger; InitAll
// returns it raw.
type initAllPayload struct {
	Codes struct {
		Speciality []Specialty `json:"SPECIALITY"`
	} `json:"Codes"`
}

// InitAll retrieves the appointments API initialization payload
// (code tables, clinics, resources) as raw decoded JSON.
func (c *Client) InitAll(ctx context.Context) (any, error) {
	var result any
	if err := c.get(ctx, "/api/his/AppointmentsAPI/InitAll", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Specialties retrieves the SPECIALITY code table from InitAll.
func (c *Client) Specialties(ctx context.Context) ([]Specialty, error) {
	var payload initAllPayload
	if err := c.get(ctx, "/api/his/AppointmentsAPI/InitAll", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Codes.Speciality, nil
}

// ActivateSSO activates single sign-on for an account.
func (c *Client) ActivateSSO(ctx context.Context, id string) (any, error) {
	var result any
	q := url.Values{"Id": {id}}
	if err := c.get(ctx, "/api/visitmgmt/Accounts/ActivateSSO", q, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SearchByIDNumber looks up a patient by national/identity document number.
func (c *Client) SearchByIDNumber(ctx context.Context, idNumber string) (any, error) {
	var result any
	q := url.Values{
		"CodeName": {"CHECKIDNO"},
		"text":     {idNumber},
	}
	if err := c.get(ctx, "/api/clinicaldocs/Codes/SearchText", q, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// TodayAppointments retrieves today's appointments recordset.
func (c *Client) TodayAppointments(ctx context.Context) (any, error) {
	return c.recordset(ctx, "GET_TODAYAPPTS", c.visitID)
}

// OngoingVisits retrieves the ongoing visits recordset.
func (c *Client) OngoingVisits(ctx context.Context) (any, error) {
	return c.recordset(ctx, "GET_ONGOINGVISITS", c.visitID)
}

// AppointmentNumber retrieves the appointment number recordset for a visit.
func (c *Client) AppointmentNumber(ctx context.Context, visitID string) (any, error) {
	return c.recordset(ctx, "GET_APPTNO", visitID)
}

// PatientJourney retrieves the patient journey recordset for a visit.
func (c *Client) PatientJourney(ctx context.Context, visitID string) (any, error) {
	return c.recordset(ctx, "GET_PATIENT_JOURNEY", visitID)
}

// FindResourcesQuery narrows the appointment resource search.
// Zero-valued fields are sent as null, which the HIS treats as "any".
type FindResourcesQuery struct {
	ResourceType string
	SpecialtyID  string
	ResourceID   string
	ClinicID     string
	DateFrom     string // YYYY-MM-DD
	DateTo       string // YYYY-MM-DD
	FromTime     string
	ToTime       string
}

// FindResources searches for bookable appointment resources.
func (c *Client) FindResources(ctx context.Context, q FindResourcesQuery) (any, error) {
	body := map[string]any{
		"RESOURCETYPE": q.ResourceType,
		"SPECIALITYID": nullable(q.SpecialtyID),
		"RESOURCEID":   nullable(q.ResourceID),
		"CLINICID":     nullable(q.ClinicID),
		"FROMDATE":     q.DateFrom,
		"TODATE":       q.DateTo,
		"FROM_TIME":    nullable(q.FromTime),
		"TO_TIME":      nullable(q.ToTime),
	}
	return c.userDataset(ctx, "APPOINTMENTFINDRESC", body)
}

// FollowupQuery selects a patient's follow-up appointments in a date range.
type FollowupQuery struct {
	PatientID string
	DateFrom  string // YYYY-MM-DD
	DateTo    string // YYYY-MM-DD
	FromTime  string
	ToTime    string
}

// AppointmentFollowup retrieves follow-up appointments for a patient.
func (c *Client) AppointmentFollowup(ctx context.Context, q FollowupQuery) (any, error) {
	body := map[string]any{
		"PATIENTID": q.PatientID,
		"FROMDATE":  q.DateFrom,
		"TODATE":    q.DateTo,
		"FROM_TIME": nullable(q.FromTime),
		"TO_TIME":   nullable(q.ToTime),
	}
	return c.userDataset(ctx, "APPOINTMENTFOLLOWUP", body)
}

// SessionSlots retrieves the bookable slots for a resource's session
// on a given date. sessionDate is YYYY-MM-DD; the HIS expects a
// midnight-UTC timestamp suffix on the wire.
func (c *Client) SessionSlots(ctx context.Context, resourceID, sessionDate, sessionID string) (any, error) {
	var result any
	q := url.Values{
		"Id":          {resourceID},
		"SessionDate": {sessionDate + "T00:00:00.000Z"},
		"SessionId":   {sessionID},
	}
	if err := c.get(ctx, "/api/his/AppointmentsAPI/GetSessionSlots", q, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// WalkinParams identifies the slot and patient for a walk-in booking.
type WalkinParams struct {
	ResourceID  string
	SessionID   string
	SessionDate string // YYYY-MM-DD
	FromTime    string // HH:MM:SS
	PatientID   string
}

// CreateWalkin books a walk-in appointment. Not idempotent: callers
// must invoke it at most once per user request.
func (c *Client) CreateWalkin(ctx context.Context, p WalkinParams) (any, error) {
	var result any
	q := url.Values{
		"ResourceId":  {p.ResourceID},
		"SessionId":   {p.SessionID},
		"SessionDate": {p.SessionDate},
		"FromTime":    {p.FromTime},
		"PatientId":   {p.PatientID},
	}
	if err := c.get(ctx, "/api/his/AppointmentsAPI/CreateWalkin", q, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateVisit creates a visit from an existing appointment. Not
// idempotent: callers must invoke it at most once per user request.
func (c *Client) CreateVisit(ctx context.Context, appointmentID string) (any, error) {
	var result any
	q := url.Values{"AppointmentId": {appointmentID}}
	if err := c.get(ctx, "/api/his/AppointmentsAPI/CreateVisit", q, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// recordset runs a named clinical docs recordset query.
func (c *Client) recordset(ctx context.Context, queryName, visitID string) (any, error) {
	var result any
	q := url.Values{
		"VisitId":   {visitID},
		"QueryName": {queryName},
	}
	if err := c.get(ctx, "/api/clinicaldocs/VisitDocs/GetRecordset", q, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// userDataset runs a named appointments dataset query with a JSON body.
func (c *Client) userDataset(ctx context.Context, queryName string, body map[string]any) (any, error) {
	var result any
	path := "/api/his/AppointmentsAPI/GetUserDataset?" + url.Values{"QueryName": {queryName}}.Encode()
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// nullable maps empty strings to nil so the wire carries JSON null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// get performs a GET request against the HIS API.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "*/*")

	return c.do(req, path, result)
}

// post performs a POST request against the HIS API.
func (c *Client) post(ctx context.Context, path string, data any, result any) error {
	var reqBody []byte
	if data != nil {
		var err error
		reqBody, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal data: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, result)
}

func (c *Client) do(req *http.Request, path string, result any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	// Drain and close to ensure connection reuse even when result is nil.
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 512)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, body)
	}

	c.logger.Debug("hospital API call",
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start).Truncate(time.Millisecond),
	)

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
