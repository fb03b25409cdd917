// Package intent classifies user utterances into coarse hospital-domain
// intents using keyword and pattern heuristics. Classification is a pure
// function over enumerated pattern tables: no I/O, no model calls.
// Utterances nothing here recognizes fall through to the language model.
package intent

import (
	"regexp"
	"strings"
)

// Label is the classified intent of an utterance.
type Label int

const (
	// Unknown means no heuristic matched; the reasoning stage consults
	// the language model.
	Unknown Label = iota

	// Greeting is a pure social opener with no information need.
	Greeting

	// Appointment covers booking, checking, and managing appointments.
	Appointment

	// Specialty covers questions about available doctor specialties.
	Specialty
)

func (l Label) String() string {
	switch l {
	case Greeting:
		return "greeting"
	case Appointment:
		return "appointment"
	case Specialty:
		return "specialty"
	default:
		return "unknown"
	}
}

// Pure greeting phrases, matched against the whole normalized utterance.
var greetingPhrases = map[string]bool{
	"hi":             true,
	"hello":          true,
	"hey":            true,
	"hiya":           true,
	"yo":             true,
	"good morning":   true,
	"good afternoon": true,
	"good evening":   true,
	"greetings":      true,
	"hi there":       true,
	"hello there":    true,
	"hey there":      true,
}

// Greeting openers that carry a "how are you" style question and get a
// slightly different templated reply.
var howAreYouPrefixes = []string{
	"how are you",
	"how're you",
	"how is it going",
	"how's it going",
	"what's up",
	"whats up",
	"how do you do",
}

// Strong multi-word appointment indicators, checked as substrings.
var appointmentPhrases = []string{
	"book appointment",
	"book an appointment",
	"book a appointment",
	"book me an appointment",
	"schedule appointment",
	"schedule an appointment",
	"schedule visit",
	"schedule a visit",
	"make an appointment",
	"make appointment",
	"need an appointment",
	"want an appointment",
	"today's appointments",
	"todays appointments",
	"my appointments",
	"appointment number",
	"appointment slots",
	"available slots",
	"session slots",
	"walk-in",
	"walk in appointment",
	"follow up appointment",
	"follow-up appointment",
	"patient journey",
	"ongoing visits",
	"create a visit",
	"create visit",
	"check in",
	"check-in",
}

// Verb+object appointment structures the phrase list doesn't cover.
var appointmentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(book|schedule|make|arrange|set up|reserve|get)\b.*\b(appointment|visit|consultation|checkup|check-up|slot)s?\b`),
	regexp.MustCompile(`\b(appointment|visit|consultation)s?\b.*\b(book|schedule|available|today|tomorrow)\b`),
	regexp.MustCompile(`\b(reschedule|cancel|confirm)\b.*\b(appointment|visit|booking)s?\b`),
	regexp.MustCompile(`\bwhen\b.*\b(appointment|visit)s?\b`),
	regexp.MustCompile(`\b(any|available|open|free)\b.*\bslots?\b`),
}

// Single appointment-domain nouns; only accepted as appointment intent
// when a general domain noun is also present (see classifyAppointment).
var appointmentNouns = []string{
	"appointment", "appointments", "booking", "bookings",
	"slot", "slots", "walkin", "reschedule", "followup", "follow-up",
}

var domainNouns = []string{
	"doctor", "hospital", "clinic", "visit",
}

// Vocabulary that disqualifies a specialty classification. Keeps the two
// intents disjoint: "book an appointment with a cardiologist" must stay
// an appointment query.
var bookingVocabulary = []string{
	"appointment", "appointments", "book", "booking", "schedule",
	"slot", "slots", "walkin", "walk-in", "reschedule",
	"time", "times", "today", "tomorrow",
}

// Full-list follow-up patterns ("yes, show me the full list").
var fullListPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(full|complete|entire|whole)\b.*\blist\b`),
	regexp.MustCompile(`\blist\b.*\b(all|every)\b`),
	regexp.MustCompile(`\bshow\b.*\ball\b`),
	regexp.MustCompile(`\ball\b.*\b(specialties|specialities|departments)\b`),
}

// Bare affirmatives that only become a full-list request in the context
// of an assistant turn offering the full list.
var bareAffirmatives = map[string]bool{
	"yes":        true,
	"yes please": true,
	"yeah":       true,
	"yep":        true,
	"sure":       true,
	"ok":         true,
	"okay":       true,
	"please":     true,
	"please do":  true,
	"go ahead":   true,
}

// Specialty keyword set: role words, department words, and named
// body-system terms patients actually use.
var specialtyKeywords = []string{
	"specialty", "specialties", "speciality", "specialities",
	"doctor", "doctors", "specialist", "specialists",
	"department", "departments",
	"cardiology", "cardiologist", "dermatology", "dermatologist",
	"neurology", "neurologist", "pediatrics", "pediatrician",
	"orthopedic", "orthopedics", "gynecology", "gynecologist",
	"urology", "urologist", "ophthalmology", "ophthalmologist",
	"psychiatry", "psychiatrist", "radiology", "oncology",
	"heart", "skin", "brain", "bone", "bones", "eye", "eyes",
	"kidney", "kidneys", "stomach", "lungs",
}

// Interrogative/request markers required for a bare specialty keyword to
// count as specialty intent. Guards against incidental mentions like
// "my doctor said hello".
var requestMarkers = []string{
	"what", "which", "do ", "does", "are ", "is there", "can ",
	"have", "tell", "inform", "show", "list", "looking for", "need",
}

// Classify labels an utterance. recentHistory is the tail of the
// conversation (most recent last) and is only consulted to resolve bare
// affirmatives after a full-list offer. Tie-break order is fixed:
// greeting > appointment > specialty > unknown.
func Classify(utterance string, recentHistory []string) Label {
	q := normalize(utterance)
	if q == "" {
		return Unknown
	}

	if isGreeting(q) {
		return Greeting
	}
	if isAppointment(q) {
		return Appointment
	}
	if isSpecialty(q, recentHistory) {
		return Specialty
	}
	return Unknown
}

// IsHowAreYou reports whether a greeting utterance carries a "how are
// you" style question, which gets a different templated reply.
func IsHowAreYou(utterance string) bool {
	q := normalize(utterance)
	for _, p := range howAreYouPrefixes {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// IsFullListRequest reports whether the utterance asks for the complete
// specialty list rather than a truncated preview. A bare affirmative
// counts when the previous assistant turn offered the full list.
func IsFullListRequest(utterance string, recentHistory []string) bool {
	q := normalize(utterance)

	for _, re := range fullListPatterns {
		if re.MatchString(q) {
			return true
		}
	}

	if bareAffirmatives[q] && lastTurnOfferedFullList(recentHistory) {
		return true
	}

	return false
}

func isGreeting(q string) bool {
	if greetingPhrases[q] {
		return true
	}
	for _, p := range howAreYouPrefixes {
		if strings.HasPrefix(q, p) {
			return true
		}
	}
	// "hi, how are you" / "hello! what's up"
	for phrase := range greetingPhrases {
		if strings.HasPrefix(q, phrase+" ") || strings.HasPrefix(q, phrase+",") {
			rest := strings.TrimLeft(strings.TrimPrefix(q, phrase), " ,")
			for _, p := range howAreYouPrefixes {
				if strings.HasPrefix(rest, p) {
					return true
				}
			}
		}
	}
	return false
}

func isAppointment(q string) bool {
	for _, p := range appointmentPhrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	for _, re := range appointmentPatterns {
		if re.MatchString(q) {
			return true
		}
	}
	// Fallback: an appointment noun alongside a domain noun.
	if containsAny(q, appointmentNouns) && containsAny(q, domainNouns) {
		return true
	}
	return false
}

func isSpecialty(q string, recentHistory []string) bool {
	// Mutual exclusion: anything with booking/time vocabulary belongs to
	// appointment detection (which already declined it) or the model.
	if containsAny(q, bookingVocabulary) {
		return false
	}

	if IsFullListRequest(q, recentHistory) {
		return true
	}

	if !containsAny(q, specialtyKeywords) {
		return false
	}

	// A bare keyword mention needs a question or request marker.
	return containsAny(q, requestMarkers)
}

func lastTurnOfferedFullList(recentHistory []string) bool {
	if len(recentHistory) == 0 {
		return false
	}
	last := strings.ToLower(recentHistory[len(recentHistory)-1])
	return strings.Contains(last, "full list")
}

func containsAny(q string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

// normalize lowercases and strips surrounding whitespace and trailing
// punctuation so anchored phrase matches work on real typed input.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, " \t.!?")
}
