// Package smimecmd builds canonical wire command lines and helper argv
// for the S/MIME helper's line protocol.
//
// Design:
//
//   - This layer is a pure "command construction" module: no execution,
//     no I/O. It normalizes emission semantics for both the process argv
//     used to spawn the helper and the line-protocol commands sent on
//     the control channel once spawned.
//
// Emission policy is deterministic and explicit:
//
//   - Numeric flags are always emitted (including 0).
//   - Optional strings are emitted only when non-empty.
//   - A Builder's first token is always its keyword (e.g. "OPTION",
//     "LISTKEYS"), mirroring argv[0] conventions.
//
// Usage:
//
//	line := smimecmd.NewBuilder("OPTION").WithArg("include-certs").WithIntArg(-1).BuildString()
//	argv := smimecmd.HelperArgv("/usr/bin/gpgsm")
package smimecmd

import (
	"strconv"
	"strings"
)

// Builder constructs a single space-separated wire command line.
//
// The Builder implements a fluent API; it is NOT concurrency-safe.
// Callers should treat a Builder as a single-use, short-lived value.
//
// Invariants:
//   - args[0] is always the command keyword.
//   - All With* methods are deterministic and order-preserving.
type Builder struct {
	args []string
}

// NewBuilder returns a Builder pre-seeded with the command keyword.
func NewBuilder(keyword string) *Builder {
	return &Builder{args: []string{keyword}}
}

// WithArg appends a positional token if non-empty.
func (b *Builder) WithArg(arg string) *Builder {
	if arg != "" {
		b.args = append(b.args, arg)
	}
	return b
}

// WithIntArg appends a base-10 int token (always emitted).
func (b *Builder) WithIntArg(val int) *Builder {
	b.args = append(b.args, strconv.Itoa(val))
	return b
}

// WithFlag appends "--flag" if on is true; never emitted otherwise.
// Unlike a boolean value flag, absence IS the false state on this wire
// protocol (e.g. `SIGN` vs `SIGN --detached`).
func (b *Builder) WithFlag(flag string, on bool) *Builder {
	if on {
		b.args = append(b.args, flag)
	}
	return b
}

// WithKeyEqValue appends "key=value" if value is non-empty.
func (b *Builder) WithKeyEqValue(key, value string) *Builder {
	if value != "" {
		b.args = append(b.args, key+"="+value)
	}
	return b
}

// WithFDArg appends "FD=<n>" (always emitted).
func (b *Builder) WithFDArg(fd int) *Builder {
	b.args = append(b.args, "FD="+strconv.Itoa(fd))
	return b
}

// BuildString returns the space-joined command line (no trailing LF;
// the line codec owns framing).
func (b *Builder) BuildString() string {
	return strings.Join(b.args, " ")
}

// BuildArgv returns a defensive copy of the constructed token vector.
func (b *Builder) BuildArgv() []string {
	out := make([]string, len(b.args))
	copy(out, b.args)
	return out
}

// HelperArgv constructs the canonical argv used to spawn the helper in
// server mode: `<path> --server`.
func HelperArgv(helperPath string) []string {
	return NewBuilder(helperPath).WithArg("--server").BuildArgv()
}

// Option builds `OPTION <key>=<value>`.
func Option(key, value string) string {
	return NewBuilder("OPTION").WithKeyEqValue(key, value).BuildString()
}

// OptionListMode builds `OPTION list-mode=<bits&3>`.
func OptionListMode(bits int) string {
	return NewBuilder("OPTION").WithArg("list-mode=" + strconv.Itoa(bits&3)).BuildString()
}

// OptionIncludeCerts builds `OPTION include-certs <n>`.
func OptionIncludeCerts(n int) string {
	return NewBuilder("OPTION").WithArg("include-certs").WithIntArg(n).BuildString()
}

// Recipient builds `RECIPIENT <name>`.
func Recipient(name string) string {
	return NewBuilder("RECIPIENT").WithArg(name).BuildString()
}

// Sign builds `SIGN` or `SIGN --detached`.
func Sign(detached bool) string {
	return NewBuilder("SIGN").WithFlag("--detached", detached).BuildString()
}

// encodingFlag maps an input/output encoding tag to its wire flag; the
// empty string (no flag) covers the "caller did not declare one" case.
func encodingFlag(enc string) string {
	switch enc {
	case "binary":
		return "--binary"
	case "base64":
		return "--base64"
	case "armor":
		return "--armor"
	default:
		return ""
	}
}

// Input builds `INPUT FD=<fd>[ --binary|--base64|--armor]`.
func Input(fd int, enc string) string {
	return NewBuilder("INPUT").WithFDArg(fd).WithArg(encodingFlag(enc)).BuildString()
}

// Output builds `OUTPUT FD=<fd>[ --armor]`.
func Output(fd int, armor bool) string {
	return NewBuilder("OUTPUT").WithFDArg(fd).WithFlag("--armor", armor).BuildString()
}

// Message builds `MESSAGE FD=<fd>`.
func Message(fd int) string {
	return NewBuilder("MESSAGE").WithFDArg(fd).BuildString()
}

// PercentEncodePattern escapes the three bytes the extended LISTKEYS
// wire format reserves (`%`→`%25`, ` `→`%20`, `+`→`%2B`); other bytes
// pass through unchanged.
func PercentEncodePattern(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '%':
			b.WriteString("%25")
		case ' ':
			b.WriteString("%20")
		case '+':
			b.WriteString("%2B")
		default:
			b.WriteByte(p[i])
		}
	}
	return b.String()
}

// listKeysKeyword picks LISTKEYS vs LISTSECRETKEYS.
func listKeysKeyword(secret bool) string {
	if secret {
		return "LISTSECRETKEYS"
	}
	return "LISTKEYS"
}

// ListKeysPlain builds the non-extended `LISTKEYS [pattern]` /
// `LISTSECRETKEYS [pattern]` form: at most one pattern, taken verbatim
// (no percent-encoding — that escaping is reserved for the extended,
// multi-pattern wire form).
func ListKeysPlain(pattern string, secret bool) string {
	return NewBuilder(listKeysKeyword(secret)).WithArg(pattern).BuildString()
}

// ListKeysExtended builds `LISTKEYS <patterns...>` / `LISTSECRETKEYS
// <patterns...>`, percent-encoding every pattern and joining with
// spaces. An empty patterns slice yields a trailing-space-free command
// with no pattern.
func ListKeysExtended(patterns []string, secret bool) string {
	b := NewBuilder(listKeysKeyword(secret))
	for _, p := range patterns {
		b.WithArg(PercentEncodePattern(p))
	}
	return b.BuildString()
}
