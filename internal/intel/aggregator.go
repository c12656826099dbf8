package intel

import (
	"github.com/fraudguard/honeytrap/internal/domain"
)

// Aggregator tracks which independent artifact categories a session has
// produced and answers the stop-condition question. Keyword matches count
// toward confidence scoring but never toward the independent-signal count:
// keywords are supporting, not decisive, evidence.
type Aggregator struct {
	threshold int
}

// NewAggregator creates an aggregator with the given stop threshold. The
// reference policy is 2 independent signals.
func NewAggregator(threshold int) *Aggregator {
	if threshold < 1 {
		threshold = 2
	}
	return &Aggregator{threshold: threshold}
}

// Merge folds a fragment into the session's artifact sets, respecting
// uniqueness by normalized value, and records the turn each value was
// first seen. Re-merging an already-present fragment is a no-op, which
// makes per-turn extraction idempotent. Returns the number of newly added
// entries.
func (a *Aggregator) Merge(s *domain.Session, frag Fragment, turn int) int {
	added := 0
	for cat, values := range frag {
		members := s.Artifacts[cat]
		if members == nil {
			members = make(map[string]int)
			s.Artifacts[cat] = members
		}
		for _, v := range values {
			if _, seen := members[v]; seen {
				continue
			}
			members[v] = turn
			added++
		}
	}
	return added
}

// IndependentSignals counts distinct non-keyword categories with at least
// one member.
func (a *Aggregator) IndependentSignals(s *domain.Session) int {
	count := 0
	for _, cat := range domain.Categories {
		if cat == domain.CategoryKeyword {
			continue
		}
		if len(s.Artifacts[cat]) > 0 {
			count++
		}
	}
	return count
}

// MeetsStopThreshold reports whether enough independent intelligence has
// accumulated to disengage: at least threshold distinct non-keyword
// categories, one of which must be strong (upi, bank account or link). A
// phone number plus another weak signal never suffices, so coincidental
// digit runs cannot end an engagement.
func (a *Aggregator) MeetsStopThreshold(s *domain.Session) bool {
	if a.IndependentSignals(s) < a.threshold {
		return false
	}
	for _, cat := range domain.Categories {
		if cat.Strong() && len(s.Artifacts[cat]) > 0 {
			return true
		}
	}
	return false
}
