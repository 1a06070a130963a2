package engine

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// lineKind classifies one line read off the control channel, per the
// prefix rules of the wire protocol.
type lineKind int

const (
	lineOK lineKind = iota
	lineErr
	lineStatus
	lineData
	lineComment
	lineEmpty
)

// classifiedLine is the parsed form of one control-channel line.
type classifiedLine struct {
	kind    lineKind
	errCode int    // lineErr only
	name    string // lineStatus only
	rest    string // lineStatus only: substring after the first space
	payload []byte // lineData only: bytes after "D " (still %HH-encoded)
}

// classifyLine parses one line (terminator already stripped) by its
// first byte(s), per the wire protocol's dispatch table.
func classifyLine(line string) classifiedLine {
	switch {
	case line == "":
		return classifiedLine{kind: lineEmpty}

	case line[0] == '#':
		return classifiedLine{kind: lineComment}

	case line == "OK" || strings.HasPrefix(line, "OK "):
		return classifiedLine{kind: lineOK}

	case line == "ERR" || strings.HasPrefix(line, "ERR "):
		rest := strings.TrimPrefix(line, "ERR")
		rest = strings.TrimPrefix(rest, " ")
		code := 0
		if sp := strings.IndexByte(rest, ' '); sp >= 0 {
			code, _ = strconv.Atoi(rest[:sp])
		} else {
			code, _ = strconv.Atoi(rest)
		}
		return classifiedLine{kind: lineErr, errCode: code}

	case strings.HasPrefix(line, "S "):
		rest := line[2:]
		name := rest
		tail := ""
		if sp := strings.IndexByte(rest, ' '); sp >= 0 {
			name = rest[:sp]
			tail = rest[sp+1:]
		}
		return classifiedLine{kind: lineStatus, name: name, rest: tail}

	case strings.HasPrefix(line, "D "):
		return classifiedLine{kind: lineData, payload: []byte(line[2:])}

	case line == "D":
		return classifiedLine{kind: lineData, payload: nil}

	default:
		// Unrecognised lines are treated as comments: harmless keepalive
		// noise the codec does not need to understand.
		return classifiedLine{kind: lineComment}
	}
}

// lineCodec talks to the control (STATUS) channel only: it writes
// command lines (appending LF) and reads whole logical lines, CR
// tolerant, LF terminated.
type lineCodec struct {
	w io.Writer
	r *bufio.Reader
}

func newLineCodec(rw io.ReadWriter) *lineCodec {
	return &lineCodec{w: rw, r: bufio.NewReader(rw)}
}

// WriteLine appends LF to line and writes it in a single call.
func (c *lineCodec) WriteLine(line string) error {
	_, err := io.WriteString(c.w, line+"\n")
	return err
}

// ReadLine returns one logical line with its terminator stripped; a
// trailing CR (if any) is also stripped.
func (c *lineCodec) ReadLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if err != nil {
		return line, err
	}
	return line, nil
}

// SimpleCommand writes cmd synchronously and reads lines until a
// non-comment, non-empty line arrives. OK maps to nil; ERR maps through
// mapWireError; anything else is a generic protocol error.
//
// The original helper's equivalent routine falls through to a bare
// "return success" on the generic-error path regardless of the mapped
// error — a bug, not reproduced here; SimpleCommand always returns the
// mapped error.
func (c *lineCodec) SimpleCommand(cmd string) *Error {
	if err := c.WriteLine(cmd); err != nil {
		return pipeError(fmt.Sprintf("write %q: %v", cmd, err))
	}
	for {
		line, err := c.ReadLine()
		if err != nil {
			return pipeError(fmt.Sprintf("read reply to %q: %v", cmd, err))
		}
		cl := classifyLine(line)
		switch cl.kind {
		case lineComment, lineEmpty:
			continue
		case lineOK:
			return nil
		case lineErr:
			if e := mapWireError(cl.errCode); e != nil {
				return e
			}
			return newError(GeneralError, cl.errCode, "")
		default:
			return newError(GeneralError, 0, fmt.Sprintf("unexpected reply to %q: %q", cmd, line))
		}
	}
}
