package engine

import "testing"

func TestStatusTableSorted(t *testing.T) {
	for i := 1; i < len(statusTable); i++ {
		if statusTable[i-1].Name >= statusTable[i].Name {
			t.Errorf("statusTable not sorted at index %d: %q >= %q", i, statusTable[i-1].Name, statusTable[i].Name)
		}
	}
}

func TestLookupStatusKnown(t *testing.T) {
	code, ok := lookupStatus("DECRYPTION_OKAY")
	if !ok {
		t.Fatal("expected DECRYPTION_OKAY to be known")
	}
	if code != StatusDecryptionOkay {
		t.Errorf("got code %v, want StatusDecryptionOkay", code)
	}
}

func TestLookupStatusUnknown(t *testing.T) {
	_, ok := lookupStatus("SOME_MADE_UP_NAME")
	if ok {
		t.Error("expected unknown status name to report ok=false")
	}
}

func TestLookupStatusInvRecp(t *testing.T) {
	code, ok := lookupStatus("INV_RECP")
	if !ok || code != StatusInvRecp {
		t.Errorf("INV_RECP lookup = (%v, %v), want (StatusInvRecp, true)", code, ok)
	}
}
