package engine

import (
	"testing"

	"github.com/fraudguard/honeytrap/internal/intel"
)

func TestPrecheckTransactionalAlert(t *testing.T) {
	t.Parallel()

	ex := intel.NewExtractor(nil)
	text := "Dear Customer, Rs.4,850.00 debited from HDFC Bank A/c XX1234 on 12-Jun. Not you? Call 18002586161."
	got := legitimacyPrecheck(text, ex.Extract(text), true)
	if !got.Legit {
		t.Fatal("transactional bank alert not whitelisted")
	}
}

func TestPrecheckAlertWithCallToActionEngages(t *testing.T) {
	t.Parallel()

	ex := intel.NewExtractor(nil)
	text := "HDFC Bank: Rs. 5000 debited from your account. Verify your KYC to reverse it."
	got := legitimacyPrecheck(text, ex.Extract(text), true)
	if got.Legit {
		t.Fatal("alert with a call to action was whitelisted")
	}
}

func TestPrecheckStrongArtifactDisablesWhitelist(t *testing.T) {
	t.Parallel()

	ex := intel.NewExtractor(nil)
	text := "HDFC Bank: Rs. 5000 debited. For reversal send Rs. 10 to refund@okaxis"
	got := legitimacyPrecheck(text, ex.Extract(text), true)
	if got.Legit {
		t.Fatal("message carrying a UPI id was whitelisted")
	}
}

func TestPrecheckTollFreeFirstContact(t *testing.T) {
	t.Parallel()

	ex := intel.NewExtractor(nil)
	text := "Queries? Contact our helpline 1800-258-6161 between 9am and 6pm."
	if got := legitimacyPrecheck(text, ex.Extract(text), true); !got.Legit {
		t.Fatal("toll-free first contact not whitelisted")
	}
	if got := legitimacyPrecheck(text, ex.Extract(text), false); got.Legit {
		t.Fatal("toll-free rule applied after engagement started")
	}
}

func TestPrecheckShortNeutralFirstMessage(t *testing.T) {
	t.Parallel()

	ex := intel.NewExtractor(nil)
	text := "Hey, is this Ramesh from the cricket club?"
	if got := legitimacyPrecheck(text, ex.Extract(text), true); !got.Legit {
		t.Fatal("short neutral first message not whitelisted")
	}
	if got := legitimacyPrecheck(text, ex.Extract(text), false); got.Legit {
		t.Fatal("short-message rule applied mid-conversation")
	}
}

func TestPrecheckShortMessageWithKeywordEngages(t *testing.T) {
	t.Parallel()

	ex := intel.NewExtractor(nil)
	text := "Your KYC expired, act now"
	if got := legitimacyPrecheck(text, ex.Extract(text), true); got.Legit {
		t.Fatal("short message with urgency vocabulary was whitelisted")
	}
}
