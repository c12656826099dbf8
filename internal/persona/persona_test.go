package persona

import (
	"fmt"
	"testing"
	"time"

	"github.com/fraudguard/honeytrap/internal/domain"
)

func TestSelectIsReproducible(t *testing.T) {
	t.Parallel()

	sel := NewSelector(nil)
	now := time.Now()

	first := sel.SelectOrGet(domain.NewSession("session-abc", now))
	second := sel.SelectOrGet(domain.NewSession("session-abc", now))
	if first.Name != second.Name {
		t.Fatalf("same session id picked %q then %q", first.Name, second.Name)
	}
}

func TestSelectLocksPersona(t *testing.T) {
	t.Parallel()

	sel := NewSelector(nil)
	sess := domain.NewSession("session-lock", time.Now())

	locked := sel.SelectOrGet(sess)
	if sess.Persona != locked.Name {
		t.Fatalf("session persona %q not locked to %q", sess.Persona, locked.Name)
	}
	for i := 0; i < 5; i++ {
		if got := sel.SelectOrGet(sess); got.Name != locked.Name {
			t.Fatalf("call %d returned %q, want locked %q", i, got.Name, locked.Name)
		}
	}
}

func TestLockedNameSurvivesCatalogChange(t *testing.T) {
	t.Parallel()

	sel := NewSelector([]Persona{{Name: "Night Guard", Stalls: []string{"hm?"}}})
	sess := domain.NewSession("session-old", time.Now())
	sess.Persona = "Confused Senior" // locked under a previous catalog

	got := sel.SelectOrGet(sess)
	if got.Name != "Confused Senior" {
		t.Fatalf("locked persona replaced by %q", got.Name)
	}
	if sess.Persona != "Confused Senior" {
		t.Fatalf("session lock mutated to %q", sess.Persona)
	}
}

func TestSelectionSpreadsAcrossCatalog(t *testing.T) {
	t.Parallel()

	sel := NewSelector(nil)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		p := sel.SelectOrGet(domain.NewSession(fmt.Sprintf("session-%d", i), time.Now()))
		seen[p.Name] = true
	}
	if len(seen) < 2 {
		t.Fatalf("50 sessions all got the same persona: %v", seen)
	}
}

func TestDefaultCatalogIsUsable(t *testing.T) {
	t.Parallel()

	for _, p := range DefaultCatalog() {
		if p.Name == "" {
			t.Fatal("catalog persona with empty name")
		}
		if len(p.Stalls) == 0 {
			t.Fatalf("persona %q has no stall replies", p.Name)
		}
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	sel := NewSelector(nil)
	if _, ok := sel.Get("Confused Senior"); !ok {
		t.Fatal("known persona not found")
	}
	if _, ok := sel.Get("Nonexistent"); ok {
		t.Fatal("unknown persona found")
	}
}
