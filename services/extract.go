package services

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numberRegexp captures the first number with optional thousand/decimal separators.
var numberRegexp = regexp.MustCompile(`\d[\d.,]*`)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
}

// lookup walks a dotted path through nested objects.
func lookup(payload map[string]any, path string) (any, bool) {
	var cur any = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// firstValue returns the first non-empty value along the chain.
func firstValue(payload map[string]any, chain []string) (any, bool) {
	for _, key := range chain {
		v, ok := lookup(payload, key)
		if !ok {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// parseNumber converts a scraped value into a float. It yields nil instead of failing.
// Separators follow the last-one-is-decimal rule: "1.200,50" → 1200.5, "250.000" → 250000.
func parseNumber(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return validFloat(t)
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return validFloat(f)
	case string:
		return parseNumberString(t)
	}
	return nil
}

func parseNumberString(raw string) *float64 {
	match := numberRegexp.FindString(raw)
	if match == "" {
		return nil
	}
	match = strings.TrimRight(match, ".,")

	lastDot := strings.LastIndex(match, ".")
	lastComma := strings.LastIndex(match, ",")

	var cleaned string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		decSep, thouSep := ".", ","
		if lastComma > lastDot {
			decSep, thouSep = ",", "."
		}
		cleaned = strings.ReplaceAll(match, thouSep, "")
		cleaned = strings.Replace(cleaned, decSep, ".", 1)
	case lastDot >= 0:
		cleaned = singleSeparator(match, ".")
	case lastComma >= 0:
		cleaned = singleSeparator(match, ",")
	default:
		cleaned = match
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return validFloat(f)
}

// singleSeparator decides whether sep groups thousands or marks decimals.
func singleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	if len(parts) > 2 || len(parts[len(parts)-1]) == 3 {
		return strings.Join(parts, "")
	}
	return strings.Join(parts, ".")
}

// round2 rounds to cents the way a NUMERIC(_, 2) column stores a float parameter: the
// shortest decimal form of f, rounded half away from zero.
func round2(f float64) float64 {
	s := strconv.FormatFloat(math.Abs(f), 'f', -1, 64)
	dot := strings.IndexByte(s, '.')
	if dot < 0 || len(s)-dot-1 <= 2 {
		return f
	}
	cents, err := strconv.ParseInt(s[:dot]+s[dot+1:dot+3], 10, 64)
	if err != nil {
		return f
	}
	if s[dot+3] >= '5' {
		cents++
	}
	out := float64(cents) / 100
	if f < 0 {
		out = -out
	}
	return out
}

func roundedPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := round2(*f)
	return &v
}

func validFloat(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseTime(v any) *time.Time {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				ts = ts.UTC()
				return &ts
			}
		}
	case float64:
		return epoch(int64(t))
	case int64:
		return epoch(t)
	case int:
		return epoch(int64(t))
	}
	return nil
}

// epoch accepts seconds or milliseconds since the Unix epoch.
func epoch(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var ts time.Time
	if n > 1e12 {
		ts = time.UnixMilli(n).UTC()
	} else {
		ts = time.Unix(n, 0).UTC()
	}
	return &ts
}

// countPhotos accepts a list of photo objects/URLs or a delimited string of URLs.
func countPhotos(v any) (int, bool) {
	switch t := v.(type) {
	case []any:
		return len(t), true
	case []string:
		return len(t), true
	case string:
		n := 0
		for _, p := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ';' || r == ' ' }) {
			if p != "" {
				n++
			}
		}
		return n, true
	}
	return 0, false
}

// upstreamParticular interprets a portal-supplied seller type.
func upstreamParticular(v any) *bool {
	yes, no := true, false
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		switch fold(t) {
		case "particular", "private", "privado", "owner", "propietario", "individual", "true", "1":
			return &yes
		case "professional", "profesional", "agency", "agencia", "inmobiliaria", "pro", "developer", "promotora", "false", "0":
			return &no
		}
	}
	return nil
}
