package job

import (
	"regexp"
	"testing"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestKey_Deterministic(t *testing.T) {
	t.Parallel()

	k1 := Key("cohort-a", "alice")
	k2 := Key("cohort-a", "alice")
	if k1 != k2 {
		t.Errorf("Key is not stable: %q != %q", k1, k2)
	}
	if !hexPattern.MatchString(k1) {
		t.Errorf("Key %q is not 64 hex chars", k1)
	}
}

func TestKey_DistinguishesOwners(t *testing.T) {
	t.Parallel()

	if Key("cohort-a", "alice") == Key("cohort-a", "bob") {
		t.Error("same dataset under different owners produced the same key")
	}
	if Key("cohort-a", "alice") == Key("cohort-b", "alice") {
		t.Error("different datasets under the same owner produced the same key")
	}
}

func TestKey_SeparatorPreventsCollisions(t *testing.T) {
	t.Parallel()

	// Concatenation without a separator would make these collide.
	if Key("b", "a") == Key("", "ab") {
		t.Error("owner/dataset boundary is ambiguous")
	}
}
