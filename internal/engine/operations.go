package engine

import (
	"io"

	"github.com/hexgate/smime-engine/pkg/smimecmd"
)

// Encoding is the caller's declared encoding hint for a data source,
// propagated onto the INPUT command as a wire flag.
type Encoding int

const (
	EncNone Encoding = iota
	EncBinary
	EncBase64
	EncArmor
)

// tag is the wire-flag name smimecmd.Input expects, "" for EncNone.
func (e Encoding) tag() string {
	switch e {
	case EncBinary:
		return "binary"
	case EncBase64:
		return "base64"
	case EncArmor:
		return "armor"
	default:
		return ""
	}
}

// stageInput binds src to the INPUT channel and issues the synchronous
// INPUT command with the encoding suffix derived from enc.
func (s *Session) stageInput(src io.Reader, enc Encoding) *Error {
	s.bind(Input, src)
	fd := s.pipes.inputHelperFD
	return s.Option(smimecmd.Input(fd, enc.tag()))
}

// stageOutput binds dst to the OUTPUT channel and issues the
// synchronous OUTPUT command, with --armor when armor is requested.
func (s *Session) stageOutput(dst io.Writer, armor bool) *Error {
	s.bind(Output, dst)
	fd := s.pipes.outputHelperFD
	return s.Option(smimecmd.Output(fd, armor))
}

// stageMessage binds src to the MESSAGE channel and issues the
// synchronous MESSAGE command.
func (s *Session) stageMessage(src io.Reader) *Error {
	s.bind(Message, src)
	fd := s.pipes.messageHelperFD
	return s.Option(smimecmd.Message(fd))
}

// Decrypt stages a DECRYPT operation: INPUT is ciphertext, OUTPUT is
// plaintext, MESSAGE is unused and closed.
func (s *Session) Decrypt(ciphertext io.Reader, ciphertextEnc Encoding, plaintext io.Writer) *Error {
	if err := s.stageInput(ciphertext, ciphertextEnc); err != nil {
		return err
	}
	if err := s.stageOutput(plaintext, false); err != nil {
		return err
	}
	s.closeUnused(Input, Output)
	s.setCommand("DECRYPT")
	return nil
}

// Encrypt stages an ENCRYPT operation after submitting recipients via
// §4.3.1's RECIPIENT loop. INPUT is plaintext, OUTPUT is ciphertext
// (optionally armored), MESSAGE is unused and closed.
func (s *Session) Encrypt(plaintext io.Reader, plaintextEnc Encoding, ciphertext io.Writer, armor bool, recipients []string) *Error {
	if err := s.submitRecipients(recipients); err != nil {
		return err
	}
	if err := s.stageInput(plaintext, plaintextEnc); err != nil {
		return err
	}
	if err := s.stageOutput(ciphertext, armor); err != nil {
		return err
	}
	s.closeUnused(Input, Output)
	s.setCommand("ENCRYPT")
	return nil
}

// Sign stages a SIGN operation, optionally detached. includeCerts
// controls how many certificates the helper embeds (-2..n per the wire
// convention); values <0 are passed through unmodified.
func (s *Session) Sign(plaintext io.Reader, plaintextEnc Encoding, signature io.Writer, armor bool, detached bool, includeCerts int) *Error {
	if err := s.Option(smimecmd.OptionIncludeCerts(includeCerts)); err != nil {
		return err
	}
	if err := s.stageInput(plaintext, plaintextEnc); err != nil {
		return err
	}
	if err := s.stageOutput(signature, armor); err != nil {
		return err
	}
	s.closeUnused(Input, Output)
	s.setCommand(smimecmd.Sign(detached))
	return nil
}

// VerifyInline stages a VERIFY operation for an inline (non-detached)
// signature: the recovered message is delivered to textSink on OUTPUT.
func (s *Session) VerifyInline(sig io.Reader, sigEnc Encoding, textSink io.Writer) *Error {
	if err := s.stageInput(sig, sigEnc); err != nil {
		return err
	}
	if err := s.stageOutput(textSink, false); err != nil {
		return err
	}
	s.closeUnused(Input, Output)
	s.setCommand("VERIFY")
	return nil
}

// VerifyDetached stages a VERIFY operation for a detached signature:
// the original message is streamed to the helper on MESSAGE.
func (s *Session) VerifyDetached(sig io.Reader, sigEnc Encoding, message io.Reader) *Error {
	if err := s.stageInput(sig, sigEnc); err != nil {
		return err
	}
	if err := s.stageMessage(message); err != nil {
		return err
	}
	s.closeUnused(Input, Message)
	s.setCommand("VERIFY")
	return nil
}

// Import stages an IMPORT operation: INPUT carries key material; OUTPUT
// and MESSAGE are unused and closed.
func (s *Session) Import(keyMaterial io.Reader, enc Encoding) *Error {
	if err := s.stageInput(keyMaterial, enc); err != nil {
		return err
	}
	s.closeUnused(Input)
	s.setCommand("IMPORT")
	return nil
}

// Genkey stages a GENKEY operation. The helper always stores the
// generated secret key itself; callers must not request a secret-key
// sink. params is the parameter document read on INPUT; pubkey
// receives the generated public key on OUTPUT.
func (s *Session) Genkey(params io.Reader, pubkey io.Writer, secretKeyRequested bool) *Error {
	if secretKeyRequested {
		return newError(InvalidValue, 0, "gpgsm always stores the secret key itself; a secret-key sink is not permitted")
	}
	if err := s.stageInput(params, EncNone); err != nil {
		return err
	}
	if err := s.stageOutput(pubkey, false); err != nil {
		return err
	}
	s.closeUnused(Input, Output)
	s.setCommand("GENKEY")
	return nil
}

// listModeSecret / listModePublic mirror the `bits & 3` convention of
// OPTION list-mode: bit 0 selects public keys, bit 1 selects secret
// keys. Both bits together lists both.
const (
	listModePublic = 1
	listModeSecret = 2
)

// ListKeys stages a LISTKEYS or LISTSECRETKEYS operation for a single
// pattern (possibly empty, meaning "all"). All three data channels are
// closed; results arrive as colon-delimited D records on STATUS.
func (s *Session) ListKeys(pattern string, secret bool) *Error {
	mode := listModePublic
	if secret {
		mode = listModeSecret
	}
	if err := s.Option(smimecmd.OptionListMode(mode)); err != nil {
		return err
	}
	s.closeUnused()
	s.setCommand(smimecmd.ListKeysPlain(pattern, secret))
	return nil
}

// ListKeysExtended stages the extended-pattern variant: multiple
// patterns are percent-encoded (`%`→`%25`, ` `→`%20`, `+`→`%2B`) and
// joined with spaces.
func (s *Session) ListKeysExtended(patterns []string, secret bool) *Error {
	mode := listModePublic
	if secret {
		mode = listModeSecret
	}
	if err := s.Option(smimecmd.OptionListMode(mode)); err != nil {
		return err
	}
	s.closeUnused()
	s.setCommand(smimecmd.ListKeysExtended(patterns, secret))
	return nil
}

// Delete, Export and TrustList are not implemented: the helper's wire
// shape for them is undocumented in the corpus this adapter was built
// from. They are kept as explicit stubs rather than omitted so callers
// get a typed NotImplemented error instead of a missing method.
func (s *Session) Delete(string) *Error    { return newError(NotImplemented, 0, "DELETE") }
func (s *Session) Export(string) *Error    { return newError(NotImplemented, 0, "EXPORT") }
func (s *Session) TrustList(string) *Error { return newError(NotImplemented, 0, "TRUSTLIST") }
