package tools

import (
	"sort"
	"strings"

	"github.com/ivivacare/smartclinic/internal/hospital"
)

// SpecialtyResult is the payload of the get_doctor_specialties tool.
type SpecialtyResult struct {
	Specialties []hospital.Specialty `json:"specialties"`
	IsFullList  bool                 `json:"is_full_list"`
}

// Words that mark a follow-up asking for the complete list, matched
// against whole query words.
var fullListTerms = map[string]bool{
	"FULL": true, "ALL": true, "COMPLETE": true, "YES": true,
	"YEAH": true, "SURE": true, "LIST": true, "SHOW": true, "MORE": true,
}

// Substrings that mark a general "what do you offer" style query.
var generalQueryTerms = []string{
	"AVAILABLE", "LIST", "ALL", "WHAT", "WHICH", "HAVE", "OFFER",
}

// Filler words stripped from queries before term matching.
var specialtyStopWords = map[string]bool{
	"WHAT": true, "WHICH": true, "ARE": true, "IS": true, "THE": true,
	"DO": true, "DOES": true, "YOU": true, "HAVE": true, "AVAILABLE": true,
	"THERE": true, "ANY": true, "FOR": true, "A": true, "AN": true,
	"IN": true, "AT": true, "BY": true, "WITH": true, "ABOUT": true,
	"AND": true, "OR": true, "OF": true, "TO": true,
	"PLEASE": true, "CAN": true, "COULD": true, "WOULD": true,
	"SPECIALTY": true, "SPECIALTIES": true, "SPECIALITY": true,
	"SPECIALITIES": true, "DOCTOR": true, "DOCTORS": true,
}

// FilterSpecialties selects the specialties matching a free-form query.
// forceFull short-circuits to the complete list regardless of the query
// text (set when the intent classifier recognized a full-list
// follow-up). Full lists are returned sorted alphabetically by
// description; filtered results keep source order.
func FilterSpecialties(all []hospital.Specialty, query string, forceFull bool) SpecialtyResult {
	q := strings.ToUpper(strings.TrimSpace(query))
	words := strings.Fields(q)

	isFullList := forceFull
	if !isFullList {
		for _, w := range words {
			if fullListTerms[w] {
				isFullList = true
				break
			}
		}
	}
	if !isFullList {
		for _, term := range generalQueryTerms {
			if strings.Contains(q, term) {
				isFullList = true
				break
			}
		}
	}

	if isFullList || q == "" {
		return SpecialtyResult{Specialties: sortedByDescription(all), IsFullList: true}
	}

	// Specific query: match remaining terms against descriptions.
	var terms []string
	for _, w := range words {
		if !specialtyStopWords[w] {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 {
		return SpecialtyResult{Specialties: sortedByDescription(all), IsFullList: true}
	}

	var matched []hospital.Specialty
	for _, s := range all {
		desc := strings.ToUpper(s.Description)
		for _, term := range terms {
			if strings.Contains(desc, term) {
				matched = append(matched, s)
				break
			}
		}
	}

	return SpecialtyResult{Specialties: matched}
}

func sortedByDescription(specs []hospital.Specialty) []hospital.Specialty {
	out := make([]hospital.Specialty, len(specs))
	copy(out, specs)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Description < out[j].Description
	})
	return out
}
