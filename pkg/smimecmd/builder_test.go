package smimecmd

import "testing"

func TestBuilderBasic(t *testing.T) {
	line := NewBuilder("OPTION").WithArg("include-certs").WithIntArg(-1).BuildString()
	want := "OPTION include-certs -1"
	if line != want {
		t.Errorf("got %q, want %q", line, want)
	}
}

func TestWithArgSkipsEmpty(t *testing.T) {
	line := NewBuilder("RECIPIENT").WithArg("").BuildString()
	if line != "RECIPIENT" {
		t.Errorf("got %q, want %q", line, "RECIPIENT")
	}
}

func TestWithFlag(t *testing.T) {
	if got := Sign(true); got != "SIGN --detached" {
		t.Errorf("Sign(true) = %q", got)
	}
	if got := Sign(false); got != "SIGN" {
		t.Errorf("Sign(false) = %q", got)
	}
}

func TestWithFDArgAlwaysEmitted(t *testing.T) {
	if got := NewBuilder("INPUT").WithFDArg(0).BuildString(); got != "INPUT FD=0" {
		t.Errorf("got %q", got)
	}
}

func TestOption(t *testing.T) {
	if got := Option("display", ":0"); got != "OPTION display=:0" {
		t.Errorf("got %q", got)
	}
	if got := Option("display", ""); got != "OPTION" {
		t.Errorf("empty value must be dropped, got %q", got)
	}
}

func TestOptionListMode(t *testing.T) {
	cases := []struct {
		bits int
		want string
	}{
		{0, "OPTION list-mode=0"},
		{1, "OPTION list-mode=1"},
		{2, "OPTION list-mode=2"},
		{3, "OPTION list-mode=3"},
		{7, "OPTION list-mode=3"}, // masked to the low 2 bits
	}
	for _, c := range cases {
		if got := OptionListMode(c.bits); got != c.want {
			t.Errorf("OptionListMode(%d) = %q, want %q", c.bits, got, c.want)
		}
	}
}

func TestOptionIncludeCerts(t *testing.T) {
	if got := OptionIncludeCerts(-2); got != "OPTION include-certs -2" {
		t.Errorf("got %q", got)
	}
}

func TestPercentEncodePatternEscapesReservedBytes(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"alice@example.com", "alice@example.com"},
		{"100% sure+more", "100%25%20sure%2Bmore"},
		{"", ""},
	}
	for _, c := range cases {
		if got := PercentEncodePattern(c.in); got != c.want {
			t.Errorf("PercentEncodePattern(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestListKeysExtendedJoinsAndEncodesPatterns(t *testing.T) {
	got := ListKeysExtended([]string{"a b", "c+d"}, false)
	want := "LISTKEYS a%20b c%2Bd"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestListKeysExtendedSecretKeyword(t *testing.T) {
	got := ListKeysExtended([]string{"alice"}, true)
	want := "LISTSECRETKEYS alice"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestListKeysExtendedNoPatterns(t *testing.T) {
	if got := ListKeysExtended(nil, false); got != "LISTKEYS" {
		t.Errorf("got %q, want %q", got, "LISTKEYS")
	}
}

func TestListKeysPlainDoesNotEncode(t *testing.T) {
	got := ListKeysPlain("a b+c", false)
	want := "LISTKEYS a b+c"
	if got != want {
		t.Errorf("got %q, want %q (plain LISTKEYS must not percent-encode)", got, want)
	}
	if got := ListKeysPlain("", true); got != "LISTSECRETKEYS" {
		t.Errorf("got %q, want %q", got, "LISTSECRETKEYS")
	}
}

func TestHelperArgv(t *testing.T) {
	got := HelperArgv("/usr/bin/gpgsm")
	want := []string{"/usr/bin/gpgsm", "--server"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildArgvIsDefensiveCopy(t *testing.T) {
	b := NewBuilder("LISTKEYS").WithArg("alice")
	a := b.BuildArgv()
	a[0] = "mutated"
	again := b.BuildArgv()
	if again[0] != "LISTKEYS" {
		t.Error("mutating a returned argv slice must not affect the builder's internal state")
	}
}
