package matching

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// Capacity tokens such as "8GB", "256 GB", "1TB", "1.5 TB"
	capacityTokenRegex = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(gb|tb)\b`)

	// A capacity token is RAM when "RAM" follows or precedes it closely
	ramAfterRegex  = regexp.MustCompile(`(?i)^\s*(?:of\s+)?ram\b`)
	ramBeforeRegex = regexp.MustCompile(`(?i)\bram\s*[:\-]?\s*$`)

	parenGroupRegex = regexp.MustCompile(`\(([^)]*)\)`)

	// Screen size in inches: 6.1", 11 inch, 27.94 cm (11 inch)
	displayRegex = regexp.MustCompile(`(?i)\b(\d{1,2}(?:\.\d{1,2})?)\s*(?:"|''|-?\s*inch(?:es)?\b|in\b)`)

	connectivityRegex = regexp.MustCompile(`(?i)\b(wi-?fi\s*\+\s*(?:5g|4g|lte|cellular)|wi-?fi\s+only|wi-?fi|5g|4g|lte|cellular)\b`)
)

// VariantHints holds variant attributes parsed from a listing title.
type VariantHints struct {
	RAMGB            *int
	StorageGB        *int
	Color            string
	DisplaySize      *float64
	ConnectivityType string
}

// ExtractVariantHints parses RAM, storage, colour and tablet attributes from
// a title like "Galaxy S24 Ultra 5G (Titanium Black, 12GB RAM, 256GB Storage)".
func ExtractVariantHints(title string) VariantHints {
	var hints VariantHints

	storage := 0
	consumed := 0
	for _, loc := range capacityTokenRegex.FindAllStringSubmatchIndex(title, -1) {
		after := ramAfterRegex.FindStringIndex(title[loc[1]:])
		before := ramBeforeRegex.MatchString(title[consumed:loc[0]])
		consumed = loc[1]
		if after != nil {
			consumed += after[1]
		}

		gb, ok := ParseCapacityGB(title[loc[2]:loc[3]] + title[loc[4]:loc[5]])
		if !ok {
			continue
		}

		if after != nil || before {
			if hints.RAMGB == nil {
				ram := gb
				hints.RAMGB = &ram
			}
			continue
		}
		if gb > storage {
			storage = gb
		}
	}
	if storage > 0 {
		hints.StorageGB = &storage
	}

	hints.Color = extractColor(title)

	if m := displayRegex.FindStringSubmatch(title); len(m) > 1 {
		if size, err := strconv.ParseFloat(m[1], 64); err == nil && size >= 4 && size <= 20 {
			hints.DisplaySize = &size
		}
	}

	if m := connectivityRegex.FindStringSubmatch(title); len(m) > 1 {
		hints.ConnectivityType = normalizeConnectivity(m[1])
	}

	return hints
}

// extractColor looks for a digit-free qualifier inside parentheses, then
// for a trailing " - Colour" segment.
func extractColor(title string) string {
	for _, group := range parenGroupRegex.FindAllStringSubmatch(title, -1) {
		for _, part := range strings.Split(group[1], ",") {
			if isColorCandidate(part) {
				return StandardizeColor(part)
			}
		}
	}

	if i := strings.LastIndex(title, " - "); i >= 0 {
		if part := title[i+3:]; isColorCandidate(part) {
			return StandardizeColor(part)
		}
	}
	return ""
}

func isColorCandidate(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(strings.Fields(s)) > 3 || strings.ContainsFunc(s, unicode.IsDigit) {
		return false
	}
	lower := strings.ToLower(s)
	for _, w := range []string{"ram", "storage", "rom", "wifi", "wi-fi", "cellular", "renewed", "refurbished", "unlocked"} {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return StandardizeColor(s) != ""
}

// normalizeConnectivity maps the title spelling onto wifi, wifi+5g,
// wifi+4g, 5g or 4g.
func normalizeConnectivity(raw string) string {
	c := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	c = strings.ReplaceAll(c, "wi-fi", "wifi")
	switch {
	case c == "wifionly" || c == "wifi":
		return "wifi"
	case strings.HasPrefix(c, "wifi+"):
		rest := strings.TrimPrefix(c, "wifi+")
		if rest == "lte" || rest == "cellular" {
			rest = "4g"
		}
		return "wifi+" + rest
	case c == "lte" || c == "cellular":
		return "4g"
	default:
		return c
	}
}

// NormalizeConnectivity exposes the connectivity mapping for records that
// carry it as a field.
func NormalizeConnectivity(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return normalizeConnectivity(raw)
}
