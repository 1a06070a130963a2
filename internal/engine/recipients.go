package engine

import "github.com/hexgate/smime-engine/pkg/smimecmd"

// submitRecipients implements the §4.3.1 recipient submission loop used
// by Encrypt: each name is sent as a synchronous RECIPIENT command.
// Invalid_Key is not fatal — it is surfaced via INV_RECP and the loop
// continues; any other error aborts immediately. If no recipient is
// ultimately accepted, NO_RECP is surfaced once the loop ends.
func (s *Session) submitRecipients(recipients []string) *Error {
	anyValid := false

	for _, name := range recipients {
		err := s.Option(smimecmd.Recipient(name))
		if err == nil {
			anyValid = true
			continue
		}
		if err.Kind != InvalidKey {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecipientRejected()
		}
		if s.statusHandler != nil {
			s.statusHandler(StatusInvRecp, "INV_RECP", "0 "+name)
		}
	}

	if !anyValid && s.statusHandler != nil {
		s.statusHandler(StatusNoRecp, "NO_RECP", "")
	}
	return nil
}
