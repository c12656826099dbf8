package engine

import (
	"regexp"
	"strings"

	"github.com/fraudguard/honeytrap/internal/intel"
)

// The legitimacy pre-check is the false-positive safety valve. It runs
// before persona lock, aggregation and generation, and takes precedence
// over everything else: a whitelisted transactional message never engages
// the agent.

var (
	institutionPattern = regexp.MustCompile(`(?i)\b(hdfc|sbi|icici|axis|kotak|pnb|canara|bob|idfc|yes bank|bank)\b`)
	amountPattern      = regexp.MustCompile(`(?i)(?:rs\.?|inr|₹)\s*[\d,]+(?:\.\d+)?`)
	pastTenseVerb      = regexp.MustCompile(`(?i)\b(debited|credited|received|withdrawn|spent|transferred|deducted)\b`)
	callToAction       = regexp.MustCompile(`(?i)\b(share|enter|click|install|pay|send|update|confirm|verify)\b`)
	tollFreePattern    = regexp.MustCompile(`\b1(?:800|860)[\s-]?\d`)
)

// precheckResult explains why a message was whitelisted.
type precheckResult struct {
	Legit  bool
	Reason string
}

// legitimacyPrecheck applies the whitelist rules to a counterpart message.
// frag is the extraction of the same text; any strong artifact disables
// every rule. firstContact is true when the session has not engaged yet.
func legitimacyPrecheck(text string, frag intel.Fragment, firstContact bool) precheckResult {
	if frag.HasStrong() {
		return precheckResult{}
	}

	// Toll-free helplines never appear in payment-redirection scams.
	if firstContact && tollFreePattern.MatchString(text) {
		return precheckResult{Legit: true, Reason: "toll-free helpline number present"}
	}

	// Transactional bank alert: institution + amount + past-tense
	// debit/credit verb, and no request for credentials or payment.
	if institutionPattern.MatchString(text) &&
		amountPattern.MatchString(text) &&
		pastTenseVerb.MatchString(text) &&
		!callToAction.MatchString(text) {
		return precheckResult{Legit: true, Reason: "transactional bank alert shape"}
	}

	// Short first message with no link and no urgency vocabulary is most
	// likely an innocent wrong number.
	if firstContact &&
		len(strings.Fields(text)) < 10 &&
		len(frag) == 0 {
		return precheckResult{Legit: true, Reason: "short neutral first message"}
	}

	return precheckResult{}
}
