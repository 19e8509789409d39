package docparse

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	spaceRe = regexp.MustCompile(`\s+`)

	// word-internal digit/letter confusions: "del1very", "c0nfirmation"
	zeroLeadRe = regexp.MustCompile(`(?i)\b0([a-z]{2,})\b`)
	zeroMidRe  = regexp.MustCompile(`(?i)\b([a-z]+)0([a-z]+)\b`)
	oneLeadRe  = regexp.MustCompile(`(?i)\b1([a-z]{2,})\b`)
	oneMidRe   = regexp.MustCompile(`(?i)\b([a-z]+)1([a-z]+)\b`)

	titleCaser = cases.Title(language.AmericanEnglish)
)

// ocrFixes maps recognizer misreads of domain keywords to their intended
// spelling. Applied case-insensitively before any pattern matching.
var ocrFixes = map[string]string{
	"del1very":      "delivery",
	"de1ivery":      "delivery",
	"del1vered":     "delivered",
	"de1ivered":     "delivered",
	"d3livery":      "delivery",
	"d3livered":     "delivered",
	"del!very":      "delivery",
	"del!vered":     "delivered",
	"s1gnature":     "signature",
	"s1gned":        "signed",
	"rec31ved":      "received",
	"rece1ved":      "received",
	"acc3pted":      "accepted",
	"accept3d":      "accepted",
	"pr00f":         "proof",
	"pr0of":         "proof",
	"orig1n":        "origin",
	"0rigin":        "origin",
	"or1gin":        "origin",
	"destinat10n":   "destination",
	"destinati0n":   "destination",
	"p1ckup":        "pickup",
	"p1ck":          "pick",
	"t0tal":         "total",
	"we1ght":        "weight",
	"c0mm0dity":     "commodity",
	"c0mm0d1ty":     "commodity",
	"c0nfirmat10n":  "confirmation",
	"c0nfirmati0n":  "confirmation",
	"c0mplete":      "complete",
	"compl3te":      "complete",
	"dat3":          "date",
	"t1me":          "time",
	"tim3":          "time",
	"expirat10n":    "expiration",
	"exp1ration":    "expiration",
	"l1cense":       "license",
	"lic3nse":       "license",
	"1nsurance":     "insurance",
	"insuranc3":     "insurance",
	"p0licy":        "policy",
	"pol1cy":        "policy",
	"agr3ement":     "agreement",
	"agreem3nt":     "agreement",
	"liab1lity":     "liability",
	"liabil1ty":     "liability",
	"c0nfirmed":     "confirmed",
	"conf1rmed":     "confirmed",
}

var ocrFixRes = func() []struct {
	re          *regexp.Regexp
	replacement string
} {
	keys := make([]string, 0, len(ocrFixes))
	for k := range ocrFixes {
		keys = append(keys, k)
	}
	// deterministic application order
	sort.Strings(keys)
	out := make([]struct {
		re          *regexp.Regexp
		replacement string
	}, 0, len(keys))
	for _, k := range keys {
		out = append(out, struct {
			re          *regexp.Regexp
			replacement string
		}{regexp.MustCompile(`(?i)` + regexp.QuoteMeta(k)), ocrFixes[k]})
	}
	return out
}()

// CleanArtifacts corrects common OCR misreads so the structural patterns see
// the text the document actually carried. Keyword fixes preserve the original
// casing shape; the generic digit-for-letter fixes only fire inside
// alphabetic words, never inside numbers.
func CleanArtifacts(text string) string {
	for _, fix := range ocrFixRes {
		text = fix.re.ReplaceAllStringFunc(text, func(orig string) string {
			return matchCase(orig, fix.replacement)
		})
	}

	text = zeroLeadRe.ReplaceAllString(text, "o$1")
	text = zeroMidRe.ReplaceAllString(text, "${1}o$2")
	text = oneLeadRe.ReplaceAllString(text, "l$1")
	text = oneMidRe.ReplaceAllString(text, "${1}l$2")
	return text
}

func matchCase(original, replacement string) string {
	switch {
	case original == strings.ToUpper(original):
		return strings.ToUpper(replacement)
	case len(original) > 0 && original[:1] == strings.ToUpper(original[:1]):
		return titleCaser.String(replacement)
	default:
		return replacement
	}
}

// nameNoiseWords are tokens that structurally match a name capture but never
// belong in one.
var nameNoiseWords = map[string]struct{}{
	"LICENSE": {}, "CDL": {}, "EXP": {}, "EXPIRES": {}, "CLASS": {},
}

var (
	licenseShapeRe = regexp.MustCompile(`^[A-Z0-9]{7,}$`)
	dateShapeRe    = regexp.MustCompile(`\d+[/-]\d+`)
)

// normalizeName collapses whitespace, drops tokens that look like license
// numbers or dates, reorders "LAST, FIRST", and title-cases the result.
func normalizeName(name string) string {
	name = spaceRe.ReplaceAllString(strings.TrimSpace(name), " ")

	words := strings.Fields(name)
	kept := words[:0:len(words)]
	for _, w := range words {
		if licenseShapeRe.MatchString(w) || dateShapeRe.MatchString(w) {
			continue
		}
		if _, noise := nameNoiseWords[strings.ToUpper(w)]; noise {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) > 0 {
		name = strings.Join(kept, " ")
	}

	if before, after, found := strings.Cut(name, ","); found && after != "" {
		name = strings.TrimSpace(after) + " " + strings.TrimSpace(before)
	}
	return titleCaser.String(strings.ToLower(name))
}

func collapseSpaces(s string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}
