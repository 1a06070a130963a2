package engine

import (
	"reflect"
	"testing"
)

func TestColonAccumulatorSingleRecord(t *testing.T) {
	var got []byte
	c := newColonAccumulator(func(rec []byte) int {
		got = rec
		return 0
	})

	if err := c.Feed([]byte("key:1:AB%0A")); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if err := c.EndOfLine(); err != nil {
		t.Fatalf("EndOfLine: %v", err)
	}

	want := "key:1:AB"
	if string(got) != want {
		t.Errorf("got record %q, want %q", got, want)
	}
}

func TestColonAccumulatorAcrossLines(t *testing.T) {
	var records [][]byte
	c := newColonAccumulator(func(rec []byte) int {
		records = append(records, append([]byte(nil), rec...))
		return 0
	})

	// "D key:1:AB%0A" then "D more" then session end: the second line
	// leaves a partial record that must be discarded, not delivered.
	if err := c.Feed([]byte("key:1:AB%0A")); err != nil {
		t.Fatalf("Feed 1: %v", err)
	}
	if err := c.EndOfLine(); err != nil {
		t.Fatalf("EndOfLine 1: %v", err)
	}
	if err := c.Feed([]byte("more")); err != nil {
		t.Fatalf("Feed 2: %v", err)
	}
	if err := c.EndOfLine(); err != nil {
		t.Fatalf("EndOfLine 2: %v", err)
	}
	c.Discard()

	want := [][]byte{[]byte("key:1:AB")}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("got records %q, want %q", records, want)
	}
}

func TestColonAccumulatorCRStripped(t *testing.T) {
	var got []byte
	c := newColonAccumulator(func(rec []byte) int {
		got = rec
		return 0
	})
	if err := c.Feed([]byte("abc%0D%0A")); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("got %q, want %q (trailing CR stripped)", got, "abc")
	}
}

func TestColonAccumulatorEmptyPayloadIsNoop(t *testing.T) {
	called := false
	c := newColonAccumulator(func([]byte) int {
		called = true
		return 0
	})
	if err := c.Feed(nil); err != nil {
		t.Fatalf("Feed(nil): %v", err)
	}
	if called {
		t.Error("empty payload must not invoke the handler")
	}
}

func TestColonAccumulatorTruncatedEscape(t *testing.T) {
	c := newColonAccumulator(nil)
	if err := c.Feed([]byte("abc%A")); err != nil {
		t.Fatalf("Feed should not itself error mid-escape: %v", err)
	}
	if err := c.EndOfLine(); err == nil {
		t.Fatal("expected a framing error for a truncated percent escape at end of line")
	} else if err.Kind != GeneralError {
		t.Errorf("got kind %v, want GeneralError", err.Kind)
	}
}
