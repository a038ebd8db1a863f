package masker

import "testing"

func TestRegisterAndMask(t *testing.T) {
	m := New()
	m.Register("supersecret")
	out := m.Mask("the value is supersecret and nothing else")
	if out != "the value is [REDACTED] and nothing else" {
		t.Fatalf("unexpected mask result: %q", out)
	}
}

func TestMaskUnregisteredTextUnchanged(t *testing.T) {
	m := New()
	text := "nothing registered here"
	if got := m.Mask(text); got != text {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}

func TestMinimumSecretLengthIgnored(t *testing.T) {
	m := New()
	m.Register("ab") // len 2, below MinSecretLength
	text := "ab appears in ab twice"
	if got := m.Mask(text); got != text {
		t.Fatalf("short secret should not be masked, got %q", got)
	}
	if m.Contains("ab") {
		t.Fatalf("short secret should not have been registered")
	}
}

func TestExactMinimumLengthRegistered(t *testing.T) {
	m := New()
	m.Register("abc") // len 3, exactly MinSecretLength
	if !m.Contains("abc") {
		t.Fatalf("3-char secret should register")
	}
	if got := m.Mask("xabcx"); got != "x[REDACTED]x" {
		t.Fatalf("unexpected mask result: %q", got)
	}
}

func TestRegexMetacharactersTreatedLiterally(t *testing.T) {
	m := New()
	m.Register("a.b*c")
	if got := m.Mask("value a.b*c here"); got != "value [REDACTED] here" {
		t.Fatalf("unexpected mask result: %q", got)
	}
	// Confirm the regex metacharacters aren't interpreted: "aXbYc" must
	// not be masked even though "a.b*c" as a regex would match it.
	if got := m.Mask("value aXbYc here"); got != "value aXbYc here" {
		t.Fatalf("metacharacters must be literal, got %q", got)
	}
}

func TestLongestSecretWinsOnOverlap(t *testing.T) {
	m := New()
	m.Register("secret")
	m.Register("secretvalue")
	got := m.Mask("the secretvalue appears")
	if got != "the [REDACTED] appears" {
		t.Fatalf("expected whole longer secret masked once, got %q", got)
	}
}

func TestRegisterManyAndSize(t *testing.T) {
	m := New()
	count := m.RegisterMany([]string{"foo1", "foo2", "ab"})
	if m.Size() != 2 {
		t.Fatalf("expected 2 registered (short one dropped), got %d", m.Size())
	}
	if count != 2 {
		t.Fatalf("expected RegisterMany to report 2 accepted, got %d", count)
	}
}

func TestClear(t *testing.T) {
	m := New()
	m.Register("clearme")
	m.Clear()
	if m.Size() != 0 {
		t.Fatalf("expected empty after Clear, got size %d", m.Size())
	}
	if got := m.Mask("clearme still here"); got != "clearme still here" {
		t.Fatalf("expected unmasked after Clear, got %q", got)
	}
}

func TestMaskArgs(t *testing.T) {
	m := New()
	m.Register("topsecret")
	out := m.MaskArgs([]string{"--token=topsecret", "plain"})
	if out[0] != "--token=[REDACTED]" || out[1] != "plain" {
		t.Fatalf("unexpected masked args: %v", out)
	}
}

func TestMaskMap(t *testing.T) {
	m := New()
	m.Register("leaked")
	out := MaskMap(m, map[string]string{"KEY": "leaked"}, false)
	if out["KEY"] != "[REDACTED]" {
		t.Fatalf("expected value masked, got %v", out)
	}
}

func TestWithToken(t *testing.T) {
	m := New().WithToken("***")
	m.Register("hideme")
	if got := m.Mask("hideme"); got != "***" {
		t.Fatalf("expected custom token, got %q", got)
	}
}

// TestRegisterThenMaskOrdering exercises the §5 sequential-consistency
// guarantee: once Register returns, every subsequent Mask call must not
// emit the value unmasked, even across concurrent readers.
func TestRegisterThenMaskOrdering(t *testing.T) {
	m := New()
	done := make(chan struct{})
	go func() {
		m.Register("racevalue")
		close(done)
	}()
	<-done
	if got := m.Mask("racevalue leaked?"); got != "[REDACTED] leaked?" {
		t.Fatalf("expected masked after register returns, got %q", got)
	}
}
