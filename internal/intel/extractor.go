// Package intel implements artifact extraction and signal aggregation.
// Extraction is pure and deterministic; all session-level bookkeeping
// (dedup across turns, stop decisions) lives in the Aggregator.
package intel

import (
	"regexp"
	"strings"

	"github.com/fraudguard/honeytrap/internal/domain"
)

// Fragment holds the artifacts extracted from a single text, keyed by
// category. Values are normalized and unique within the fragment.
type Fragment map[domain.Category][]string

// Empty reports whether no category matched.
func (f Fragment) Empty() bool {
	for _, vs := range f {
		if len(vs) > 0 {
			return false
		}
	}
	return true
}

// HasStrong reports whether any strong category (upi, bank, link) matched.
func (f Fragment) HasStrong() bool {
	for cat, vs := range f {
		if cat.Strong() && len(vs) > 0 {
			return true
		}
	}
	return false
}

// upiHandles is the constrained vocabulary of payment-app suffixes. A
// localpart@handle token is a UPI id only when the handle is listed here,
// which keeps ordinary email addresses out.
var upiHandles = map[string]bool{
	"okaxis": true, "oksbi": true, "okhdfcbank": true, "okicici": true,
	"okbizaxis": true, "ybl": true, "ibl": true, "axl": true, "apl": true,
	"paytm": true, "upi": true, "fbl": true, "rbl": true, "yapl": true,
	"idfcbank": true, "barodampay": true, "freecharge": true, "mobikwik": true,
}

// mailDomains are rejected outright even if someone adds a lookalike
// handle to the vocabulary later.
var mailDomains = map[string]bool{
	"gmail.com": true, "yahoo.com": true, "yahoo.in": true, "outlook.com": true,
	"hotmail.com": true, "rediffmail.com": true, "icloud.com": true,
	"protonmail.com": true, "live.com": true, "aol.com": true,
}

var (
	upiPattern = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9._-]{1,63}@[a-z][a-z0-9.]{1,63}\b`)

	linkPattern = regexp.MustCompile(`(?i)\b(?:https?://[^\s<>"']+` +
		`|www\.[^\s<>"']+` +
		`|[a-z0-9][a-z0-9-]*(?:\.[a-z0-9-]+)*\.(?:com|net|org|in|co|io|me|xyz|info|site|online|top|link|click)(?:/[^\s<>"']*)?)\b`)

	// digitRunPattern captures contiguous digits with at most one common
	// separator between groups, so "98765 43210" and "9876-543-210" fold
	// into one run. The surrounding regex boundaries enforce the
	// not-part-of-a-longer-run discipline.
	digitRunPattern = regexp.MustCompile(`\+?\d(?:\d|[-,. ]\d)*`)
)

// DefaultKeywords is the built-in urgency/fraud-indicator vocabulary.
// Deployments can override it via the policy catalog.
var DefaultKeywords = []string{
	"blocked", "verify", "urgent", "otp", "prize", "kyc", "suspended",
	"lottery", "refund", "expired", "immediately", "pan card", "aadhaar",
	"customs", "arrest", "lucky draw", "processing fee", "deactivated",
}

// Extractor turns raw text into artifact fragments. It is stateless and
// safe for concurrent use.
type Extractor struct {
	keywords []string
}

// NewExtractor builds an extractor with the given keyword vocabulary.
// An empty vocabulary falls back to DefaultKeywords.
func NewExtractor(keywords []string) *Extractor {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			normalized = append(normalized, k)
		}
	}
	return &Extractor{keywords: normalized}
}

// Extract runs every category rule over text. It never fails: text with no
// matches yields a fragment with empty categories. Strong structural
// categories are matched first and their spans masked, so digits inside a
// UPI id or URL are never re-claimed as accounts or phone numbers.
func (e *Extractor) Extract(text string) Fragment {
	frag := Fragment{}
	if strings.TrimSpace(text) == "" {
		return frag
	}

	masked := []byte(text)

	addUnique := func(cat domain.Category, value string) {
		for _, existing := range frag[cat] {
			if existing == value {
				return
			}
		}
		frag[cat] = append(frag[cat], value)
	}

	for _, loc := range upiPattern.FindAllStringIndex(text, -1) {
		token := strings.ToLower(text[loc[0]:loc[1]])
		at := strings.LastIndexByte(token, '@')
		handle := token[at+1:]
		if mailDomains[handle] {
			// Mask plain email addresses so the link pass cannot claim
			// their domain part.
			maskSpan(masked, loc[0], loc[1])
			continue
		}
		if !upiHandles[handle] {
			continue
		}
		addUnique(domain.CategoryUPI, token)
		maskSpan(masked, loc[0], loc[1])
	}

	for _, loc := range linkPattern.FindAllStringIndex(text, -1) {
		if overlapsMask(masked, loc[0], loc[1]) {
			continue
		}
		addUnique(domain.CategoryLink, normalizeLink(text[loc[0]:loc[1]]))
		maskSpan(masked, loc[0], loc[1])
	}

	for _, loc := range digitRunPattern.FindAllIndex(masked, -1) {
		run := string(masked[loc[0]:loc[1]])
		for _, digits := range splitDigitRun(run) {
			if phone, ok := normalizePhone(digits); ok {
				addUnique(domain.CategoryPhone, phone)
				continue
			}
			if isBankAccount(digits) {
				addUnique(domain.CategoryBank, digits)
			}
		}
	}

	lower := strings.ToLower(text)
	for _, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			addUnique(domain.CategoryKeyword, kw)
		}
	}

	return frag
}

func maskSpan(b []byte, start, end int) {
	for i := start; i < end && i < len(b); i++ {
		b[i] = ' '
	}
}

func overlapsMask(b []byte, start, end int) bool {
	for i := start; i < end && i < len(b); i++ {
		if b[i] == ' ' {
			return true
		}
	}
	return false
}

// splitDigitRun decides whether a captured run is one number or a
// comma-separated list of numbers. Commas between groups of four or more
// digits separate distinct numbers; shorter groups are thousands grouping
// ("4,850" or "1,23,456") and the run stays whole.
func splitDigitRun(run string) []string {
	parts := strings.Split(run, ",")
	if len(parts) > 1 {
		pieces := make([]string, 0, len(parts))
		listShaped := true
		for _, p := range parts {
			d := stripNonDigits(p)
			if len(d) < 4 {
				listShaped = false
				break
			}
			pieces = append(pieces, d)
		}
		if listShaped {
			return pieces
		}
	}
	return []string{stripNonDigits(run)}
}

func stripNonDigits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteByte(byte(r))
		}
	}
	return sb.String()
}

// normalizePhone recognizes Indian mobile shapes and normalizes them to the
// bare 10-digit national number.
func normalizePhone(digits string) (string, bool) {
	switch {
	case len(digits) == 10 && digits[0] >= '6' && digits[0] <= '9':
		return digits, true
	case len(digits) == 11 && digits[0] == '0' && digits[1] >= '6' && digits[1] <= '9':
		return digits[1:], true
	case len(digits) == 12 && strings.HasPrefix(digits, "91") && digits[2] >= '6' && digits[2] <= '9':
		return digits[2:], true
	}
	return "", false
}

// isBankAccount accepts digit runs in the 9-18 band that are neither
// phone-shaped nor toll-free helpline numbers.
func isBankAccount(digits string) bool {
	if len(digits) < 9 || len(digits) > 18 {
		return false
	}
	if strings.HasPrefix(digits, "1800") || strings.HasPrefix(digits, "1860") {
		return false
	}
	return true
}

// normalizeLink lowercases the scheme and host while preserving path case.
func normalizeLink(raw string) string {
	raw = strings.TrimRight(raw, ".,;:!?)")
	hostEnd := len(raw)
	rest := raw
	prefixLen := 0
	if i := strings.Index(raw, "://"); i >= 0 {
		prefixLen = i + 3
		rest = raw[prefixLen:]
	}
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		hostEnd = prefixLen + j
	}
	return strings.ToLower(raw[:hostEnd]) + raw[hostEnd:]
}
