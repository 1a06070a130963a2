package engine

import (
	"strings"
	"testing"
)

func TestMapWireErrorNoError(t *testing.T) {
	if e := mapWireError(0); e != nil {
		t.Errorf("mapWireError(0) = %v, want nil", e)
	}
}

func TestMapWireErrorKnownGroups(t *testing.T) {
	cases := []struct {
		code int
		want Kind
	}{
		{11, InvalidValue},
		{14, ReadError},
		{15, WriteError},
		{69, NotImplemented},
		{99, Canceled},
		{63, InvalidKey},
		{17, InvalidKey},
		{151, InvalidKey},
		{90, InvalidEngine},
		{95, InvalidEngine},
	}
	for _, c := range cases {
		got := mapWireError(c.code)
		if got == nil || got.Kind != c.want {
			t.Errorf("mapWireError(%d) = %v, want Kind %v", c.code, got, c.want)
		}
	}
}

func TestMapWireErrorUnknownFallsBackToGeneral(t *testing.T) {
	got := mapWireError(123456)
	if got == nil || got.Kind != GeneralError {
		t.Errorf("mapWireError(123456) = %v, want GeneralError", got)
	}
}

func TestErrorStringIncludesCode(t *testing.T) {
	e := newError(InvalidKey, 17, "")
	s := e.Error()
	if s == "" {
		t.Fatal("Error() returned empty string")
	}
	if !strings.Contains(s, "(code 17)") {
		t.Errorf("Error() = %q, want it to contain %q", s, "(code 17)")
	}
}
