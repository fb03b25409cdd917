package tools

import (
	"testing"

	"github.com/ivivacare/smartclinic/internal/hospital"
)

var sampleSpecialties = []hospital.Specialty{
	{Code: "ORTH", Description: "Orthopedics"},
	{Code: "CARD", Description: "Cardiology"},
	{Code: "DERM", Description: "Dermatology"},
	{Code: "NEUR", Description: "Neurology"},
}

func descriptions(specs []hospital.Specialty) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Description
	}
	return out
}

func TestFilterSpecialtiesFullList(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		forceFull bool
	}{
		{"explicit full", "show me the full list", false},
		{"bare yes", "yes", false},
		{"general what", "what specialties do you have", false},
		{"general available", "available specialties", false},
		{"empty query", "", false},
		{"forced by classifier", "ok", true},
		{"only stop words", "which doctors", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := FilterSpecialties(sampleSpecialties, tt.query, tt.forceFull)
			if !res.IsFullList {
				t.Fatalf("IsFullList = false for %q", tt.query)
			}
			got := descriptions(res.Specialties)
			want := []string{"Cardiology", "Dermatology", "Neurology", "Orthopedics"}
			if len(got) != len(want) {
				t.Fatalf("got %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("sorted[%d] = %q, want %q", i, got[i], want[i])
				}
			}
		})
	}
}

func TestFilterSpecialtiesSpecificQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"single term", "cardiology", []string{"Cardiology"}},
		{"partial term", "derm", []string{"Dermatology"}},
		{"case insensitive", "NEUROLOGY", []string{"Neurology"}},
		{"stop words stripped", "is there a cardiology doctor", []string{"Cardiology"}},
		{"no match", "podiatry", nil},
		{"two terms", "cardiology or neurology", []string{"Cardiology", "Neurology"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := FilterSpecialties(sampleSpecialties, tt.query, false)
			if res.IsFullList {
				t.Fatalf("IsFullList = true for specific query %q", tt.query)
			}
			got := descriptions(res.Specialties)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("match[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFilterSpecialtiesSourceOrderKept(t *testing.T) {
	// Filtered results keep source order; only full lists are sorted.
	res := FilterSpecialties(sampleSpecialties, "ology", false)
	got := descriptions(res.Specialties)
	want := []string{"Cardiology", "Dermatology", "Neurology"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("match[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFilterSpecialtiesEmptyInput(t *testing.T) {
	res := FilterSpecialties(nil, "full list", false)
	if !res.IsFullList {
		t.Error("IsFullList = false")
	}
	if len(res.Specialties) != 0 {
		t.Errorf("Specialties = %v, want empty", res.Specialties)
	}
}
