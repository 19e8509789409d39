package docparse

import "regexp"

// Mode selects how a field's pattern set is evaluated.
type Mode int

const (
	// FirstMatch walks patterns in precedence order and keeps the first
	// candidate that survives post-processing.
	FirstMatch Mode = iota
	// BestMatch evaluates every pattern, scores every surviving candidate,
	// and keeps the highest-scoring one. Ties keep the earliest candidate.
	BestMatch
	// CountSignals records how many patterns matched at all; the field value
	// is the count. Used for corroborating indicators (signature marks,
	// confirmation phrases) where one hit is weak but several are strong.
	CountSignals
)

// PostFunc maps a raw capture to a typed value. Returning ok=false rejects a
// structurally valid match on semantic grounds (malformed date, implausible
// number) without blocking later patterns.
type PostFunc func(raw string, groups []string) (any, bool)

// ScoreFunc ranks a BestMatch candidate; higher wins.
type ScoreFunc func(candidate string) int

// FieldSpec describes how to locate one field in recognized text. Pattern
// order is precedence order and must stay stable: extraction is deterministic
// given identical text and specs.
type FieldSpec struct {
	Name     string
	Mode     Mode
	Patterns []*regexp.Regexp
	Post     PostFunc  // nil keeps the trimmed first capture group
	Score    ScoreFunc // BestMatch only
}

// Detail records how a field was found, for audit output. Never consulted by
// scoring beyond the Signals count.
type Detail struct {
	Pattern int    `json:"pattern"`
	Raw     string `json:"raw,omitempty"`
	Score   int    `json:"score,omitempty"`
	Signals int    `json:"signals,omitempty"`
}

// ExtractFields runs every spec against the text. Absent fields simply have
// no entry; no input, however malformed, produces an error.
func ExtractFields(text string, specs []FieldSpec) (map[string]any, map[string]Detail) {
	fields := make(map[string]any, len(specs))
	details := make(map[string]Detail, len(specs))
	for _, spec := range specs {
		value, detail, ok := extractField(text, spec)
		if ok {
			fields[spec.Name] = value
			details[spec.Name] = detail
		}
	}
	return fields, details
}

func extractField(text string, spec FieldSpec) (any, Detail, bool) {
	switch spec.Mode {
	case BestMatch:
		return extractBest(text, spec)
	case CountSignals:
		return extractSignals(text, spec)
	default:
		return extractFirst(text, spec)
	}
}

func extractFirst(text string, spec FieldSpec) (any, Detail, bool) {
	for i, re := range spec.Patterns {
		for _, groups := range re.FindAllStringSubmatch(text, -1) {
			value, ok := applyPost(spec, groups)
			if !ok {
				continue
			}
			return value, Detail{Pattern: i, Raw: groups[0]}, true
		}
	}
	return nil, Detail{}, false
}

func extractBest(text string, spec FieldSpec) (any, Detail, bool) {
	var (
		best      any
		bestScore = -1
		detail    Detail
	)
	for i, re := range spec.Patterns {
		for _, groups := range re.FindAllStringSubmatch(text, -1) {
			value, ok := applyPost(spec, groups)
			if !ok {
				continue
			}
			score := 0
			if spec.Score != nil {
				if s, isString := value.(string); isString {
					score = spec.Score(s)
				}
			}
			if score > bestScore {
				best = value
				bestScore = score
				detail = Detail{Pattern: i, Raw: groups[0], Score: score}
			}
		}
	}
	if bestScore < 0 {
		return nil, Detail{}, false
	}
	return best, detail, true
}

func extractSignals(text string, spec FieldSpec) (any, Detail, bool) {
	count := 0
	first := -1
	for i, re := range spec.Patterns {
		if re.MatchString(text) {
			count++
			if first < 0 {
				first = i
			}
		}
	}
	if count == 0 {
		return nil, Detail{}, false
	}
	return count, Detail{Pattern: first, Signals: count}, true
}

func applyPost(spec FieldSpec, groups []string) (any, bool) {
	capture := groups[0]
	if len(groups) > 1 {
		capture = groups[1]
	}
	if spec.Post == nil {
		capture = collapseSpaces(capture)
		if capture == "" {
			return nil, false
		}
		return capture, true
	}
	return spec.Post(capture, groups)
}
