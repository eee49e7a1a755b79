package matching

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	CategorySmartphones = "Smartphones"
	CategoryTablets     = "Tablets"

	NetworkType5G = "5g"
	NetworkType4G = "4g"
)

var (
	// Parenthetical and bracketed qualifiers: "(8GB RAM, 256GB)", "[Refurbished]"
	parentheticalRegex = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

	// Trailing punctuation left after stripping qualifiers
	trailingPunctRegex = regexp.MustCompile(`[\s\-|/:,;]+$`)

	nonSlugRegex = regexp.MustCompile(`[^a-z0-9]+`)

	capacityRegex = regexp.MustCompile(`(?i)^\s*(\d+(?:[.,]\d+)?)\s*(tb|gb|mb)?\s*$`)

	// SKU-shaped tokens: CPH2717, RMX3850, S24, A3102, SM-F966B, SM-S928B/DS,
	// MTP03HN/A, 2312DRA50I
	modelNumberRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^[a-z]{1,4}\d{2,5}[a-z]{0,2}$`),
		regexp.MustCompile(`(?i)^[a-z]{1,3}-[a-z0-9]{3,8}(/[a-z0-9]{1,3})?$`),
		regexp.MustCompile(`(?i)^m[a-z0-9]{4}\d?[a-z]{2}/a$`),
		regexp.MustCompile(`(?i)^\d{4,5}[a-z]{1,4}\d{1,3}[a-z]?$`),
	}

	brandAliases = map[string]string{
		"apple":          "Apple",
		"iphone":         "Apple",
		"samsung":        "Samsung",
		"samsung galaxy": "Samsung",
		"oneplus":        "OnePlus",
		"one plus":       "OnePlus",
		"1+":             "OnePlus",
		"xiaomi":         "Xiaomi",
		"mi":             "Xiaomi",
		"redmi":          "Xiaomi",
		"poco":           "Poco",
		"motorola":       "Motorola",
		"moto":           "Motorola",
		"google":         "Google",
		"google pixel":   "Google",
		"pixel":          "Google",
		"vivo":           "Vivo",
		"iqoo":           "iQOO",
		"oppo":           "Oppo",
		"realme":         "Realme",
		"nothing":        "Nothing",
		"cmf":            "Nothing",
		"cmf by nothing": "Nothing",
		"nokia":          "Nokia",
		"honor":          "Honor",
		"huawei":         "Huawei",
		"lenovo":         "Lenovo",
		"asus":           "Asus",
		"infinix":        "Infinix",
		"tecno":          "Tecno",
		"lava":           "Lava",
		"micromax":       "Micromax",
		"itel":           "itel",
		"sony":           "Sony",
		"lg":             "LG",
	}

	garbageValues = map[string]bool{
		"":        true,
		"-":       true,
		"na":      true,
		"n/a":     true,
		"null":    true,
		"none":    true,
		"unknown": true,
		"generic": true,
		"brand":   true,
		"others":  true,
	}

	noiseWords = map[string]bool{
		"smartphone":  true,
		"smartphones": true,
		"mobile":      true,
		"mobiles":     true,
		"phone":       true,
		"phones":      true,
		"cellphone":   true,
		"handset":     true,
	}

	tabletWords = map[string]bool{
		"tab":     true,
		"tabs":    true,
		"tablet":  true,
		"tablets": true,
		"pad":     true,
		"ipad":    true,
		"matepad": true,
	}

	accessoryWords = []string{
		"case", "cover", "back cover", "flip cover", "charger", "cable",
		"screen protector", "screen guard", "tempered glass", "earphone",
		"earphones", "earbuds", "headphone", "headphones", "adapter",
		"power bank", "stylus", "pencil", "skin", "holder", "mount", "strap",
		"keyboard", "smartwatch", "watch", "lens protector",
	}
)

// NormalizeText lowercases, removes accents and collapses whitespace.
func NormalizeText(s string) string {
	s = strings.ToLower(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)

	return strings.Join(strings.Fields(s), " ")
}

// StandardizeBrand maps a raw brand to its canonical spelling. Unknown brands
// come back trimmed; empty or placeholder input returns "".
func StandardizeBrand(raw string) string {
	key := NormalizeText(raw)
	if garbageValues[key] || !strings.ContainsFunc(key, unicode.IsLetter) && key != "1+" {
		return ""
	}
	if canonical, ok := brandAliases[key]; ok {
		return canonical
	}
	if canonical, ok := brandAliases[strings.ReplaceAll(key, " ", "")]; ok {
		return canonical
	}
	return strings.Join(strings.Fields(raw), " ")
}

// IsApple reports whether a brand name refers to Apple.
func IsApple(brand string) bool {
	return strings.Contains(strings.ToLower(brand), "apple")
}

// CleanModelName strips qualifiers and trailing noise from a raw model name.
// It returns "" when nothing meaningful is left.
func CleanModelName(raw string) string {
	s := parentheticalRegex.ReplaceAllString(raw, " ")
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	s = strings.Join(strings.Fields(s), " ")
	s = trailingPunctRegex.ReplaceAllString(s, "")

	tokens := strings.Fields(s)
	for len(tokens) > 0 && noiseWords[strings.ToLower(tokens[len(tokens)-1])] {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 || garbageValues[strings.ToLower(strings.Join(tokens, " "))] {
		return ""
	}
	return strings.Join(tokens, " ")
}

// NormalizeModelName is the stored product key: cleaned and lowercased.
func NormalizeModelName(raw string) string {
	return NormalizeText(CleanModelName(raw))
}

// HasNetworkSuffix reports a trailing space-delimited " 5g" or " 4g".
func HasNetworkSuffix(name string) bool {
	n := NormalizeText(name)
	return strings.HasSuffix(n, " 5g") || strings.HasSuffix(n, " 4g")
}

// RemoveNetworkSuffix drops a trailing " 5g" or " 4g". The result is
// normalized text.
func RemoveNetworkSuffix(name string) string {
	n := NormalizeText(name)
	if HasNetworkSuffix(n) {
		return strings.TrimSpace(n[:len(n)-3])
	}
	return n
}

// SameNetwork reports whether two names are both 4G or both base/5G.
func SameNetwork(a, b string) bool {
	return GetNetworkType(a) == GetNetworkType(b)
}

// GetNetworkType returns "4g" only for an explicit 4G suffix; everything
// else is treated as the base/5G model.
func GetNetworkType(name string) string {
	if strings.HasSuffix(NormalizeText(name), " 4g") {
		return NetworkType4G
	}
	return NetworkType5G
}

// GenerateSearchVariants lists the stored names that may denote the same
// product. 4G names only ever match themselves.
func GenerateSearchVariants(name string) []string {
	n := NormalizeText(name)
	if n == "" {
		return nil
	}
	if GetNetworkType(n) == NetworkType4G {
		return []string{n}
	}
	base := RemoveNetworkSuffix(n)
	return []string{base, base + " 5g"}
}

// CacheKey folds the bare and explicit-5G spellings of a name into one key
// and keeps 4G names distinct.
func CacheKey(name string) string {
	n := NormalizeText(name)
	if GetNetworkType(n) == NetworkType4G {
		return n
	}
	return RemoveNetworkSuffix(n)
}

// DetectModelNumber reports whether a single token looks like a manufacturer
// SKU rather than a marketing name.
func DetectModelNumber(token string) bool {
	t := strings.TrimSpace(token)
	if t == "" || strings.ContainsAny(t, " \t") {
		return false
	}
	if !strings.ContainsFunc(t, unicode.IsDigit) || !strings.ContainsFunc(t, unicode.IsLetter) {
		return false
	}
	for _, re := range modelNumberRegexes {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}

// Slugify joins parts into a lowercase dash-separated slug.
func Slugify(parts ...string) string {
	s := NormalizeText(strings.Join(parts, " "))
	s = strings.ReplaceAll(s, "+", " plus ")
	s = nonSlugRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// StandardizeCategory returns "Tablets" when any hint names a tablet,
// otherwise "Smartphones".
func StandardizeCategory(hints ...string) string {
	for _, hint := range hints {
		for _, w := range words(hint) {
			if tabletWords[w] {
				return CategoryTablets
			}
		}
	}
	return CategorySmartphones
}

// IsAccessory reports whether a listing is an accessory rather than a
// device. Parenthetical qualifiers are ignored so "(with charger)" does not
// count.
func IsAccessory(texts ...string) bool {
	for _, text := range texts {
		normalized := " " + strings.Join(words(parentheticalRegex.ReplaceAllString(text, " ")), " ") + " "
		for _, kw := range accessoryWords {
			if strings.Contains(normalized, " "+kw+" ") {
				return true
			}
		}
	}
	return false
}

// StandardizeColor normalizes a colour name. Placeholders return "".
func StandardizeColor(raw string) string {
	c := NormalizeText(raw)
	if garbageValues[c] {
		return ""
	}
	return c
}

// ParseCapacityGB parses "8 GB", "1TB" or "256" into gigabytes.
func ParseCapacityGB(s string) (int, bool) {
	m := capacityRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	val, err := strconv.ParseFloat(NormalizeNumber(m[1]), 64)
	if err != nil || val <= 0 {
		return 0, false
	}

	switch strings.ToLower(m[2]) {
	case "tb":
		val *= 1024
	case "mb":
		val /= 1024
	}
	if val < 1 {
		return 0, false
	}
	return int(val + 0.5), true
}

// NormalizeNumber normalizes number format (1,5 -> 1.5)
func NormalizeNumber(s string) string {
	return strings.ReplaceAll(s, ",", ".")
}

// words splits normalized text on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(NormalizeText(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
