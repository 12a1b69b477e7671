package timetable

import (
	"regexp"
	"strings"
)

// Sentinel tokens produced by the normalizer.
const (
	TokenFree  = "FREE"
	TokenLunch = "LUNCH"
)

// ingestDays are the day codes accepted at the start of a scanned line.
var ingestDays = map[string]bool{
	"MON": true,
	"TUE": true,
	"WED": true,
	"THU": true,
	"FRI": true,
	"SAT": true,
}

// DefaultAliases corrects common OCR misreads of subject codes.
func DefaultAliases() map[string]string {
	return map[string]string{
		"SS-1L": "SS-II",
		"SS-11": "SS-II",
		"SS-IL": "SS-II",
		"SSII":  "SS-II",
		"0S":    "OS",
	}
}

var disallowed = regexp.MustCompile(`[^A-Z0-9\- ]`)

// NormalizedDay is one accepted scan line.
type NormalizedDay struct {
	Day      string   `json:"day"` // 3-letter code
	Subjects []string `json:"subjects"`
}

// Normalizer cleans raw recognized text into per-day subject tokens.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer returns a normalizer using the default aliases extended (or
// overridden) by extra.
func NewNormalizer(extra map[string]string) *Normalizer {
	aliases := DefaultAliases()
	for k, v := range extra {
		aliases[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	return &Normalizer{aliases: aliases}
}

// Normalize parses one line per day. Lines without a known day code are
// dropped; nothing here fails.
func (n *Normalizer) Normalize(raw string) []NormalizedDay {
	var out []NormalizedDay
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cleaned := disallowed.ReplaceAllString(strings.ToUpper(line), "")
		tokens := strings.Fields(cleaned)
		if len(tokens) == 0 || !ingestDays[tokens[0]] {
			continue
		}

		subjects := make([]string, 0, len(tokens)-1)
		for _, tok := range tokens[1:] {
			subjects = append(subjects, n.mapToken(tok))
		}
		out = append(out, NormalizedDay{Day: tokens[0], Subjects: subjects})
	}
	return out
}

func (n *Normalizer) mapToken(tok string) string {
	switch tok {
	case "-", "--":
		return TokenFree
	case TokenLunch:
		return TokenLunch
	}
	if canon, ok := n.aliases[tok]; ok {
		return canon
	}
	return tok
}
