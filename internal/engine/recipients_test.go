package engine

import "testing"

// newRecipientTestSession builds a Session whose Option calls are routed
// through optionOverride, so submitRecipients can be exercised without a
// spawned helper process.
func newRecipientTestSession() (*Session, *[]string) {
	var statusEvents []string
	s := &Session{
		statusHandler: func(code StatusCode, name, rest string) {
			statusEvents = append(statusEvents, name+" "+rest)
		},
	}
	return s, &statusEvents
}

func TestSubmitRecipientsOneBad(t *testing.T) {
	s, events := newRecipientTestSession()
	s.optionOverride = func(line string) *Error {
		if line == "RECIPIENT bogus" {
			return newError(InvalidKey, 17, "")
		}
		return nil
	}

	if err := s.submitRecipients([]string{"alice", "bogus"}); err != nil {
		t.Fatalf("submitRecipients: %v", err)
	}

	found := false
	for _, e := range *events {
		if e == "INV_RECP 0 bogus" {
			found = true
		}
		if e == "NO_RECP " {
			t.Errorf("NO_RECP must not fire when at least one recipient succeeded")
		}
	}
	if !found {
		t.Errorf("expected an INV_RECP event for bogus, got %v", *events)
	}
}

func TestSubmitRecipientsAllBad(t *testing.T) {
	s, events := newRecipientTestSession()
	s.optionOverride = func(line string) *Error {
		return newError(InvalidKey, 17, "")
	}

	if err := s.submitRecipients([]string{"alice", "bob"}); err != nil {
		t.Fatalf("submitRecipients: %v", err)
	}

	lastIsNoRecp := len(*events) > 0 && (*events)[len(*events)-1] == "NO_RECP "
	if !lastIsNoRecp {
		t.Errorf("expected NO_RECP as the final event when no recipient is valid, got %v", *events)
	}
}

func TestSubmitRecipientsAbortsOnOtherError(t *testing.T) {
	s, _ := newRecipientTestSession()
	s.optionOverride = func(line string) *Error {
		return newError(GeneralError, 1, "framing error")
	}

	if err := s.submitRecipients([]string{"alice"}); err == nil {
		t.Fatal("expected submitRecipients to abort on a non-InvalidKey error")
	}
}
