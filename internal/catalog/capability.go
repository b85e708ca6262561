package catalog

import (
	"regexp"
	"strings"
	"unicode"
)

// Capability is a room feature a menu requires.
type Capability string

const (
	CapabilityAny       Capability = ""
	CapabilityIV        Capability = "iv"
	CapabilityTreatment Capability = "treatment"
)

// Satisfies reports whether a room with caps can host a menu requiring c.
func (c Capability) Satisfies(caps []Capability) bool {
	if c == CapabilityAny {
		return true
	}
	for _, have := range caps {
		if have == c {
			return true
		}
	}
	return false
}

// Classifier maps menu names and categories to a required capability.
type Classifier struct {
	ivMarkers        []matcher
	treatmentMarkers []matcher
}

// DefaultIVMarkers and DefaultTreatmentMarkers are the built-in markers.
var (
	DefaultIVMarkers        = []string{"点滴", "IV", "drip"}
	DefaultTreatmentMarkers = []string{"施術", "treatment"}
)

// NewClassifier builds a classifier. ASCII markers match whole words,
// case-insensitively; other markers match as substrings.
func NewClassifier(ivMarkers, treatmentMarkers []string) *Classifier {
	return &Classifier{
		ivMarkers:        compileMarkers(ivMarkers),
		treatmentMarkers: compileMarkers(treatmentMarkers),
	}
}

var defaultClassifier = NewClassifier(DefaultIVMarkers, DefaultTreatmentMarkers)

// DefaultClassifier returns the classifier using the built-in markers.
func DefaultClassifier() *Classifier {
	return defaultClassifier
}

// Classify checks IV markers before treatment markers, across both name
// and category.
func (c *Classifier) Classify(m Menu) Capability {
	texts := []string{m.Name, m.Category}
	if matchAny(c.ivMarkers, texts) {
		return CapabilityIV
	}
	if matchAny(c.treatmentMarkers, texts) {
		return CapabilityTreatment
	}
	return CapabilityAny
}

type matcher func(string) bool

func compileMarkers(markers []string) []matcher {
	out := make([]matcher, 0, len(markers))
	for _, marker := range markers {
		marker = strings.TrimSpace(marker)
		if marker == "" {
			continue
		}
		if isASCII(marker) {
			re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(marker) + `\b`)
			out = append(out, re.MatchString)
			continue
		}
		needle := marker
		out = append(out, func(s string) bool { return strings.Contains(s, needle) })
	}
	return out
}

func matchAny(matchers []matcher, texts []string) bool {
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, match := range matchers {
			if match(text) {
				return true
			}
		}
	}
	return false
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
