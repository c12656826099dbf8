package intel

import (
	"reflect"
	"testing"
	"time"

	"github.com/fraudguard/honeytrap/internal/domain"
)

func newTestSession() *domain.Session {
	return domain.NewSession("sess-1", time.Date(2025, 6, 12, 10, 0, 0, 0, time.UTC))
}

func TestMergeIsIdempotent(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2)
	sess := newTestSession()
	frag := Fragment{
		domain.CategoryUPI:     {"fraud@ybl"},
		domain.CategoryKeyword: {"urgent"},
	}

	if added := agg.Merge(sess, frag, 1); added != 2 {
		t.Fatalf("first merge added %d, want 2", added)
	}
	if added := agg.Merge(sess, frag, 2); added != 0 {
		t.Fatalf("re-merge added %d, want 0", added)
	}
	if got := sess.Artifacts.Values(domain.CategoryUPI); !reflect.DeepEqual(got, []string{"fraud@ybl"}) {
		t.Fatalf("upi values = %v", got)
	}
	// First-seen turn is preserved across re-merges.
	if turn := sess.Artifacts[domain.CategoryUPI]["fraud@ybl"]; turn != 1 {
		t.Errorf("first-seen turn = %d, want 1", turn)
	}
}

func TestValuesOrderedByFirstSeenTurn(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2)
	sess := newTestSession()
	agg.Merge(sess, Fragment{domain.CategoryLink: {"http://late.xyz"}}, 3)
	agg.Merge(sess, Fragment{domain.CategoryLink: {"http://early.xyz"}}, 1)

	want := []string{"http://early.xyz", "http://late.xyz"}
	if got := sess.Artifacts.Values(domain.CategoryLink); !reflect.DeepEqual(got, want) {
		t.Fatalf("values = %v, want %v", got, want)
	}
}

func TestKeywordsAloneNeverMeetThreshold(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2)
	sess := newTestSession()
	agg.Merge(sess, Fragment{
		domain.CategoryKeyword: {"urgent", "otp", "blocked", "kyc", "verify"},
	}, 1)

	if got := agg.IndependentSignals(sess); got != 0 {
		t.Fatalf("independent signals = %d, want 0", got)
	}
	if agg.MeetsStopThreshold(sess) {
		t.Fatal("keyword-only session met stop threshold")
	}
}

func TestPhonePlusKeywordDoesNotStop(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2)
	sess := newTestSession()
	agg.Merge(sess, Fragment{
		domain.CategoryPhone:   {"9876543210"},
		domain.CategoryKeyword: {"urgent"},
	}, 1)

	if agg.MeetsStopThreshold(sess) {
		t.Fatal("phone plus keyword met stop threshold")
	}
}

func TestSingleStrongSignalDoesNotStop(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2)
	sess := newTestSession()
	agg.Merge(sess, Fragment{domain.CategoryUPI: {"fraud@ybl"}}, 1)

	if agg.MeetsStopThreshold(sess) {
		t.Fatal("single strong category met a threshold of 2")
	}
}

func TestStrongPlusSecondCategoryStops(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2)
	sess := newTestSession()
	agg.Merge(sess, Fragment{domain.CategoryUPI: {"fraud@ybl"}}, 1)
	agg.Merge(sess, Fragment{domain.CategoryPhone: {"9876543210"}}, 2)

	if got := agg.IndependentSignals(sess); got != 2 {
		t.Fatalf("independent signals = %d, want 2", got)
	}
	if !agg.MeetsStopThreshold(sess) {
		t.Fatal("upi plus phone did not meet stop threshold")
	}
}

func TestThresholdAccumulatesAcrossTurns(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2)
	sess := newTestSession()

	agg.Merge(sess, Fragment{domain.CategoryKeyword: {"kyc"}}, 1)
	if agg.MeetsStopThreshold(sess) {
		t.Fatal("stopped after keywords only")
	}
	agg.Merge(sess, Fragment{domain.CategoryUPI: {"fraud@ybl"}}, 2)
	if agg.MeetsStopThreshold(sess) {
		t.Fatal("stopped after one independent signal")
	}
	agg.Merge(sess, Fragment{domain.CategoryLink: {"http://evil.xyz"}}, 3)
	if !agg.MeetsStopThreshold(sess) {
		t.Fatal("did not stop after two independent signals with a strong one")
	}
}
