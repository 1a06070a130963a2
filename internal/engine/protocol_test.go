package engine

import "testing"

func TestClassifyLineOK(t *testing.T) {
	for _, line := range []string{"OK", "OK closing connection"} {
		if cl := classifyLine(line); cl.kind != lineOK {
			t.Errorf("classifyLine(%q).kind = %v, want lineOK", line, cl.kind)
		}
	}
}

func TestClassifyLineErr(t *testing.T) {
	cl := classifyLine("ERR 257 helper crashed")
	if cl.kind != lineErr {
		t.Fatalf("kind = %v, want lineErr", cl.kind)
	}
	if cl.errCode != 257 {
		t.Errorf("errCode = %d, want 257", cl.errCode)
	}
}

func TestClassifyLineStatus(t *testing.T) {
	cl := classifyLine("S INV_RECP 0 bogus")
	if cl.kind != lineStatus {
		t.Fatalf("kind = %v, want lineStatus", cl.kind)
	}
	if cl.name != "INV_RECP" || cl.rest != "0 bogus" {
		t.Errorf("name=%q rest=%q, want name=INV_RECP rest=%q", cl.name, cl.rest, "0 bogus")
	}
}

func TestClassifyLineStatusNoRest(t *testing.T) {
	cl := classifyLine("S NODATA")
	if cl.name != "NODATA" || cl.rest != "" {
		t.Errorf("name=%q rest=%q, want name=NODATA rest=empty", cl.name, cl.rest)
	}
}

func TestClassifyLineData(t *testing.T) {
	cl := classifyLine("D key:1:AB%0A")
	if cl.kind != lineData {
		t.Fatalf("kind = %v, want lineData", cl.kind)
	}
	if string(cl.payload) != "key:1:AB%0A" {
		t.Errorf("payload = %q", cl.payload)
	}
}

func TestClassifyLineDataEmpty(t *testing.T) {
	cl := classifyLine("D")
	if cl.kind != lineData || cl.payload != nil {
		t.Errorf("got kind=%v payload=%q, want empty data line", cl.kind, cl.payload)
	}
}

func TestClassifyLineCommentAndEmpty(t *testing.T) {
	if cl := classifyLine("# a comment"); cl.kind != lineComment {
		t.Errorf("comment line classified as %v", cl.kind)
	}
	if cl := classifyLine(""); cl.kind != lineEmpty {
		t.Errorf("empty line classified as %v", cl.kind)
	}
}

// fakeStatusConn is an in-memory io.ReadWriter pairing a command writer
// with a canned reply, enough to drive SimpleCommand without a real pipe.
type fakeStatusConn struct {
	written []string
	reply   string
	off     int
}

func (f *fakeStatusConn) Write(p []byte) (int, error) {
	f.written = append(f.written, string(p))
	return len(p), nil
}

func (f *fakeStatusConn) Read(p []byte) (int, error) {
	if f.off >= len(f.reply) {
		return 0, errEOF
	}
	n := copy(p, f.reply[f.off:])
	f.off += n
	return n, nil
}

type sentinelErr struct{}

func (sentinelErr) Error() string { return "EOF" }

var errEOF error = sentinelErr{}

func TestSimpleCommandOK(t *testing.T) {
	conn := &fakeStatusConn{reply: "OK\n"}
	codec := newLineCodec(conn)
	if err := codec.SimpleCommand("OPTION display=:0"); err != nil {
		t.Fatalf("SimpleCommand: %v", err)
	}
	if len(conn.written) != 1 || conn.written[0] != "OPTION display=:0\n" {
		t.Errorf("written = %v", conn.written)
	}
}

func TestSimpleCommandErrMapsAndNeverSilentlySucceeds(t *testing.T) {
	conn := &fakeStatusConn{reply: "ERR 17 invalid id\n"}
	codec := newLineCodec(conn)
	err := codec.SimpleCommand("RECIPIENT bogus")
	if err == nil {
		t.Fatal("expected an error, got nil (this is the upstream bug this port intentionally does not reproduce)")
	}
	if err.Kind != InvalidKey {
		t.Errorf("kind = %v, want InvalidKey", err.Kind)
	}
}

func TestSimpleCommandSkipsCommentsAndEmptyLines(t *testing.T) {
	conn := &fakeStatusConn{reply: "# keepalive\n\nOK\n"}
	codec := newLineCodec(conn)
	if err := codec.SimpleCommand("NOP"); err != nil {
		t.Fatalf("SimpleCommand: %v", err)
	}
}
