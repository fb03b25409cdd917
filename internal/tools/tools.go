// Package tools defines the hospital operations available to the agent:
// a fixed registry of named tools, each with a declared parameter
// contract, dispatched with validation and at-most-once execution.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ivivacare/smartclinic/internal/hospital"
)

// Handler executes one tool invocation. Parameters have already passed
// validation. The returned value is an opaque JSON-like payload.
type Handler func(ctx context.Context, params map[string]string) (any, error)

// Tool represents a callable hospital operation.
type Tool struct {
	Name        string   // registry key, e.g. "create_walkin"
	Title       string   // short human phrase used in parameter prompts
	Description string   // one-line purpose, shown to the model in the tool catalog
	Required    []string // parameters that must be present and non-empty
	Optional    []string // parameters the tool understands but can run without

	// ParamDocs describes parameters for prompts and the tool catalog.
	ParamDocs map[string]string

	// DefaultableDates lists optional date parameters filled with the
	// current date when absent. Identity-bearing parameters are never
	// listed here; see IsIdentityParam.
	DefaultableDates []string

	Handler Handler

	requirement *Requirement // built at registration
}

// Registry holds the fixed set of tools. Built once at agent
// initialization and read-only afterward; safe for concurrent use.
type Registry struct {
	tools  map[string]*Tool
	client *hospital.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates the tool registry bound to a hospital client.
func NewRegistry(client *hospital.Client, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		client: client,
		logger: logger,
		now:    time.Now,
	}
	r.registerAll()
	return r
}

func (r *Registry) register(t *Tool) {
	for _, d := range t.DefaultableDates {
		if IsIdentityParam(d) {
			panic(fmt.Sprintf("tool %s declares identity parameter %s as defaultable", t.Name, d))
		}
	}
	t.requirement = requirement(t)
	r.tools[t.Name] = t
}

func (r *Registry) registerAll() {
	r.register(&Tool{
		Name:        "get_doctor_specialties",
		Title:       "the specialty lookup",
		Description: "Look up available doctor specialties, optionally filtered by a search query.",
		Optional:    []string{"query", "is_full_list"},
		ParamDocs: map[string]string{
			"query":        "free-text filter, e.g. 'heart' or 'skin'",
			"is_full_list": "set to true to return the complete, unfiltered list",
		},
		Handler: r.handleSpecialties,
	})

	r.register(&Tool{
		Name:        "activate_sso",
		Title:       "SSO activation",
		Description: "Activate single sign-on for a patient account.",
		Required:    []string{"account_id"},
		ParamDocs: map[string]string{
			"account_id": "the account identifier to activate",
		},
		Handler: func(ctx context.Context, p map[string]string) (any, error) {
			return r.client.ActivateSSO(ctx, p["account_id"])
		},
	})

	r.register(&Tool{
		Name:        "search_by_id_number",
		Title:       "the patient search",
		Description: "Find a patient record by national ID or document number.",
		Required:    []string{"id_number"},
		ParamDocs: map[string]string{
			"id_number": "the patient's ID or document number",
		},
		Handler: func(ctx context.Context, p map[string]string) (any, error) {
			return r.client.SearchByIDNumber(ctx, p["id_number"])
		},
	})

	r.register(&Tool{
		Name:        "get_today_appointments",
		Title:       "today's appointment lookup",
		Description: "List today's appointments.",
		Handler: func(ctx context.Context, p map[string]string) (any, error) {
			return r.client.TodayAppointments(ctx)
		},
	})

	r.register(&Tool{
		Name:        "get_ongoing_visits",
		Title:       "the ongoing visits lookup",
		Description: "List visits currently in progress.",
		Handler: func(ctx context.Context, p map[string]string) (any, error) {
			return r.client.OngoingVisits(ctx)
		},
	})

	r.register(&Tool{
		Name:        "init_appointments",
		Title:       "the appointments initialization",
		Description: "Fetch the appointments system reference data (clinics, resources, code tables).",
		Handler: func(ctx context.Context, p map[string]string) (any, error) {
			return r.client.InitAll(ctx)
		},
	})

	r.register(&Tool{
		Name:        "get_user_dataset",
		Title:       "the resource availability search",
		Description: "Search bookable appointment resources by specialty, clinic, and date range.",
		Optional: []string{
			"date_from", "date_to", "resource_type",
			"specialty_id", "resource_id", "clinic_id", "from_time", "to_time",
		},
		ParamDocs: map[string]string{
			"date_from":     "start date (YYYY-MM-DD), defaults to today",
			"date_to":       "end date (YYYY-MM-DD), defaults to today",
			"resource_type": "resource type code, defaults to 1",
			"specialty_id":  "restrict to one specialty",
			"resource_id":   "restrict to one doctor/resource",
			"clinic_id":     "restrict to one clinic",
		},
		DefaultableDates: []string{"date_from", "date_to"},
		Handler:          r.handleFindResources,
	})

	r.register(&Tool{
		Name:        "get_session_slots",
		Title:       "the session slot lookup",
		Description: "List open time slots for a doctor's session on a date.",
		Required:    []string{"resource_id", "session_id"},
		Optional:    []string{"session_date"},
		ParamDocs: map[string]string{
			"resource_id":  "the doctor or resource identifier",
			"session_id":   "the session identifier",
			"session_date": "session date (YYYY-MM-DD), defaults to today",
		},
		DefaultableDates: []string{"session_date"},
		Handler: func(ctx context.Context, p map[string]string) (any, error) {
			return r.client.SessionSlots(ctx, p["resource_id"], p["session_date"], p["session_id"])
		},
	})

	r.register(&Tool{
		Name:        "create_walkin",
		Title:       "the walk-in booking",
		Description: "Book a walk-in appointment for a patient in a specific session slot.",
		Required:    []string{"resource_id", "session_id", "session_date", "from_time", "patient_id"},
		ParamDocs: map[string]string{
			"resource_id":  "the doctor or resource identifier",
			"session_id":   "the session identifier",
			"session_date": "session date (YYYY-MM-DD)",
			"from_time":    "slot start time (HH:MM:SS)",
			"patient_id":   "the patient identifier",
		},
		Handler: func(ctx context.Context, p map[string]string) (any, error) {
			return r.client.CreateWalkin(ctx, hospital.WalkinParams{
				ResourceID:  p["resource_id"],
				SessionID:   p["session_id"],
				SessionDate: p["session_date"],
				FromTime:    p["from_time"],
				PatientID:   p["patient_id"],
			})
		},
	})

	r.register(&Tool{
		Name:        "get_appointment_number",
		Title:       "the appointment number lookup",
		Description: "Look up the appointment number for a visit.",
		Required:    []string{"visit_id"},
		ParamDocs: map[string]string{
			"visit_id": "the visit identifier",
		},
		Handler: func(ctx context.Context, p map[string]string) (any, error) {
			return r.client.AppointmentNumber(ctx, p["visit_id"])
		},
	})

	r.register(&Tool{
		Name:        "create_visit",
		Title:       "the visit creation",
		Description: "Create a visit (check-in) from an existing appointment.",
		Required:    []string{"appointment_id"},
		ParamDocs: map[string]string{
			"appointment_id": "the appointment identifier",
		},
		Handler: func(ctx context.Context, p map[string]string) (any, error) {
			return r.client.CreateVisit(ctx, p["appointment_id"])
		},
	})

	r.register(&Tool{
		Name:        "get_patient_journey",
		Title:       "the patient journey lookup",
		Description: "Show the patient's journey status for a visit.",
		Required:    []string{"visit_id"},
		ParamDocs: map[string]string{
			"visit_id": "the visit identifier",
		},
		Handler: func(ctx context.Context, p map[string]string) (any, error) {
			return r.client.PatientJourney(ctx, p["visit_id"])
		},
	})

	r.register(&Tool{
		Name:        "get_appointment_followup",
		Title:       "the follow-up lookup",
		Description: "List a patient's follow-up appointments in a date range.",
		Required:    []string{"patient_id"},
		Optional:    []string{"date_from", "date_to", "from_time", "to_time"},
		ParamDocs: map[string]string{
			"patient_id": "the patient identifier",
			"date_from":  "start date (YYYY-MM-DD), defaults to today",
			"date_to":    "end date (YYYY-MM-DD), defaults to today",
		},
		DefaultableDates: []string{"date_from", "date_to"},
		Handler: func(ctx context.Context, p map[string]string) (any, error) {
			return r.client.AppointmentFollowup(ctx, hospital.FollowupQuery{
				PatientID: p["patient_id"],
				DateFrom:  p["date_from"],
				DateTo:    p["date_to"],
				FromTime:  p["from_time"],
				ToTime:    p["to_time"],
			})
		},
	})
}

func (r *Registry) handleSpecialties(ctx context.Context, p map[string]string) (any, error) {
	specs, err := r.client.Specialties(ctx)
	if err != nil {
		return nil, err
	}
	forceFull := strings.EqualFold(p["is_full_list"], "true")
	return FilterSpecialties(specs, p["query"], forceFull), nil
}

func (r *Registry) handleFindResources(ctx context.Context, p map[string]string) (any, error) {
	resourceType := p["resource_type"]
	if resourceType == "" {
		resourceType = "1"
	}
	return r.client.FindResources(ctx, hospital.FindResourcesQuery{
		ResourceType: resourceType,
		SpecialtyID:  p["specialty_id"],
		ResourceID:   p["resource_id"],
		ClinicID:     p["clinic_id"],
		DateFrom:     p["date_from"],
		DateTo:       p["date_to"],
		FromTime:     p["from_time"],
		ToTime:       p["to_time"],
	})
}

// Get retrieves a tool by name, or nil when unknown.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Requirements returns the static parameter contract for a tool.
func (r *Registry) Requirements(name string) (*Requirement, bool) {
	t, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return t.requirement, true
}

// Catalog renders the tool list for the reasoning system prompt: one
// line per tool with its description and required parameters.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for i, name := range r.Names() {
		t := r.tools[name]
		fmt.Fprintf(&b, "%d. %s: %s", i+1, t.Name, t.Description)
		if len(t.Required) > 0 {
			fmt.Fprintf(&b, " Required parameters: %s.", strings.Join(t.Required, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Dispatch resolves and executes a tool. The sequence is fixed: resolve
// by name, apply the default-filling policy, validate required
// parameters, execute once. Execution errors and panics become
// OutcomeFailure; they never propagate to the caller. The bound
// operation is invoked at most once, with no retry at any layer.
func (r *Registry) Dispatch(ctx context.Context, action string, params map[string]string) (outcome Outcome) {
	tool := r.tools[action]
	if tool == nil {
		r.logger.Warn("dispatch of unknown tool", "action", action)
		return Outcome{Kind: OutcomeFailure, Err: fmt.Sprintf("unknown tool: %s", action)}
	}

	// Work on a copy so default filling never mutates the caller's map.
	filled := make(map[string]string, len(params))
	for k, v := range params {
		filled[k] = v
	}
	for _, name := range tool.DefaultableDates {
		if strings.TrimSpace(filled[name]) == "" {
			filled[name] = r.now().Format("2006-01-02")
		}
	}

	if missing := missingParams(tool.Required, filled); len(missing) > 0 {
		r.logger.Info("tool needs parameters",
			"tool", tool.Name,
			"missing", strings.Join(missing, ","),
		)
		return Outcome{Kind: OutcomeNeedsParameters, Requirement: tool.requirement}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", tool.Name, "panic", rec)
			outcome = Outcome{Kind: OutcomeFailure, Err: fmt.Sprintf("tool %s panicked: %v", tool.Name, rec)}
		}
	}()

	r.logger.Info("executing tool", "tool", tool.Name)
	result, err := tool.Handler(ctx, filled)
	if err != nil {
		r.logger.Error("tool failed", "tool", tool.Name, "error", err)
		return Outcome{Kind: OutcomeFailure, Err: err.Error()}
	}

	return Outcome{Kind: OutcomeSuccess, Result: result}
}
