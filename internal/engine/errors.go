package engine

import "fmt"

// Kind is the caller-visible error taxonomy that every helper-protocol
// numeric error code is mapped into. It deliberately mirrors the helper's
// own coarse categories rather than exposing raw wire codes to callers.
type Kind int

const (
	NoError Kind = iota
	GeneralError
	InvalidValue
	InvalidEngine
	InvalidKey
	OutOfCore
	PipeError
	ReadError
	WriteError
	NotImplemented
	Canceled
)

func (k Kind) String() string {
	switch k {
	case NoError:
		return "no_error"
	case GeneralError:
		return "general_error"
	case InvalidValue:
		return "invalid_value"
	case InvalidEngine:
		return "invalid_engine"
	case InvalidKey:
		return "invalid_key"
	case OutOfCore:
		return "out_of_core"
	case PipeError:
		return "pipe_error"
	case ReadError:
		return "read_error"
	case WriteError:
		return "write_error"
	case NotImplemented:
		return "not_implemented"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error wraps a Kind with the originating wire code (0 for locally
// synthesised errors) and an optional human-readable detail.
type Error struct {
	Kind   Kind
	Code   int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s (code %d)", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s (code %d): %s", e.Kind, e.Code, e.Detail)
}

func newError(kind Kind, code int, detail string) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail}
}

// wireKindTable maps each of the helper's numeric error codes to its
// caller Kind. The table is transcribed from map_assuan_error in
// the original helper's engine sources; codes not listed fall through to
// GeneralError, matching the helper's own default case.
var wireKindTable = map[int]Kind{
	// pass-through: identical meaning on both sides
	0:   NoError,
	10:  OutOfCore,
	11:  InvalidValue,
	14:  ReadError,
	15:  WriteError,
	69:  NotImplemented,
	99:  Canceled,

	// Invalid_Key group
	63:  InvalidKey, // Bad_Certificate
	64:  InvalidKey, // Bad_Certificate_Path
	65:  InvalidKey, // Missing_Certificate
	66:  InvalidKey, // No_Public_Key
	67:  InvalidKey, // No_Secret_Key
	68:  InvalidKey, // Invalid_Name
	40:  InvalidKey, // Card_Error
	41:  InvalidKey, // Invalid_Card
	42:  InvalidKey, // No_PKCS15_App
	43:  InvalidKey, // Card_Not_Present
	17:  InvalidKey, // Invalid_Id
	151: InvalidKey, // Bad_Signature
	152: InvalidKey, // Cert_Revoked
	153: InvalidKey, // No_CRL_For_Cert
	154: InvalidKey, // CRL_Too_Old
	155: InvalidKey, // Not_Trusted

	// Invalid_Engine group
	90: InvalidEngine, // Server_Fault
	91: InvalidEngine, // Server_Resource_Problem
	92: InvalidEngine, // Server_IO_Error
	93: InvalidEngine, // Server_Bug
	94: InvalidEngine, // No_Agent
	95: InvalidEngine, // Agent_Error
}

// mapWireError translates a helper numeric error code into a caller Kind.
// Unknown and protocol-framing codes fall back to GeneralError, matching
// the helper's own default branch; nothing here returns a raw wire code
// unmapped to the caller.
func mapWireError(code int) *Error {
	if code == 0 {
		return nil
	}
	kind, ok := wireKindTable[code]
	if !ok {
		kind = GeneralError
	}
	return newError(kind, code, "")
}

// pipeError wraps a transport-level fault (pipe/fd setup, spawn) as an
// engine Error with kind PipeError.
func pipeError(detail string) *Error {
	return &Error{Kind: PipeError, Code: 0, Detail: detail}
}
