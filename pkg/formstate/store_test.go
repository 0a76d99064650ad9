package formstate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func verifiablePolicy(keys ...string) ResetPolicy {
	set := map[string]bool{}
	for _, k := range keys {
		set[k] = true
	}
	return func(key string) []string {
		if set[key] {
			return []string{key + "_verified", "kyc_status"}
		}
		return nil
	}
}

func TestUpdateResetsVerificationAtomically(t *testing.T) {
	t.Parallel()

	s := New(WithResetPolicy(verifiablePolicy("pan#0")))
	s.Update("pan#0", String("ABCDE1234F"))
	s.SetVerified("pan#0", true)
	s.SetFlag("kyc_status", Bool(true))
	s.SetError("pan#0", "stale")

	if !s.Verified("pan#0") {
		t.Fatalf("expected verified flag")
	}

	changed := s.Update("pan#0", String("ABCDE1234G"))
	if !changed {
		t.Fatalf("expected change")
	}
	if s.Verified("pan#0") {
		t.Fatalf("expected verified flag reset")
	}
	if b, _ := s.Get("kyc_status").Bool(); b {
		t.Fatalf("expected status field reset")
	}
	if s.Error("pan#0") != "" {
		t.Fatalf("expected error cleared")
	}
}

func TestUpdateSameValueKeepsVerification(t *testing.T) {
	t.Parallel()

	s := New(WithResetPolicy(verifiablePolicy("phone")))
	s.Update("phone", String("9999999999"))
	s.SetVerified("phone", true)

	if s.Update("phone", String("9999999999")) {
		t.Fatalf("expected no change for identical value")
	}
	if !s.Verified("phone") {
		t.Fatalf("expected verification to survive a no-op update")
	}
}

func TestPurgeRemovesValueErrorAndFlag(t *testing.T) {
	t.Parallel()

	s := New()
	s.Update("addr#0", String("a"))
	s.Update("addr#1", String("b"))
	s.SetVerified("addr#1", true)
	s.SetError("addr#1", "bad")
	s.SetError("addr#0", "keep")

	s.Purge("addr#1")

	if diff := cmp.Diff([]string{"addr#0"}, s.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string{"addr#0": "keep"}, s.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestKeysWithPrefix(t *testing.T) {
	t.Parallel()

	s := New()
	s.Seed("pan", String("x"))
	s.Seed("pan#0", String("y"))
	s.Seed("pan#0_verified", Bool(true))
	s.Seed("pan_number", String("z"))

	want := []string{"pan", "pan#0", "pan#0_verified"}
	if diff := cmp.Diff(want, s.KeysWithPrefix("pan")); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestRawUnwrapsEnvelope(t *testing.T) {
	t.Parallel()

	s := New()
	s.Seed("name", String("Ada"))
	s.Seed("age", Number(36))
	s.Seed("agree", Bool(true))
	s.Seed("empty", Null())

	want := map[string]any{"name": "Ada", "age": float64(36), "agree": true, "empty": nil}
	if diff := cmp.Diff(want, s.Raw()); diff != "" {
		t.Fatalf("raw mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := New(WithResetPolicy(verifiablePolicy("pan")))
	s.Update("pan", String("ABCDE1234F"))
	s.SetVerified("pan", true)
	s.Update("name", String("Ada"))
	s.SetError("city", "City is required")
	s.SetInstances("members", 2)

	snap := s.Snapshot()

	s.Reset()
	s.Seed("name", String(""))
	s.Seed("hidden", Bool(false))
	s.Restore(snap)

	if !s.Verified("pan") {
		t.Fatalf("expected verified flag restored with identical value")
	}
	if got := s.Get("name").Text(); got != "Ada" {
		t.Fatalf("expected restored value, got %q", got)
	}
	if !s.Has("hidden") {
		t.Fatalf("expected seeded defaults to survive the merge")
	}
	if s.Error("city") != "City is required" {
		t.Fatalf("expected restored error")
	}
	if s.Instances("members") != 2 {
		t.Fatalf("expected restored instance count")
	}
}

func TestRestoreDropsVerificationForDifferentValue(t *testing.T) {
	t.Parallel()

	s := New()
	s.Update("pan", String("ABCDE1234F"))
	s.SetVerified("pan", true)
	snap := s.Snapshot()
	snap.Values["pan"] = Wrap(String("ZZZZZ9999Z"))

	s.Reset()
	s.Restore(snap)

	if s.Verified("pan") {
		t.Fatalf("expected stale verification to be dropped")
	}
}
