//go:build linux

package engine

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/hexgate/smime-engine/pkg/smimecmd"
)

// spawnedPipes holds the spawned helper and the caller-side ends of its
// control and data pipes, plus the fd numbers of the helper-side ends.
type spawnedPipes struct {
	cmd *exec.Cmd

	// caller-side ends, kept open and used for I/O after spawn
	statusW *os.File // write commands
	statusR *os.File // read responses
	inputW  *os.File // caller writes ciphertext/plaintext/key material in
	outputR *os.File // caller reads plaintext/ciphertext/pubkey out
	messageW *os.File // caller writes the original message for detached sigs

	// fd numbers the helper sees its ends under, via ExtraFiles ordering
	inputHelperFD   int
	outputHelperFD  int
	messageHelperFD int
}

// spawnHelper creates the three data pipes (INPUT/OUTPUT/MESSAGE), wires
// them to the child's inherited fd table via ExtraFiles, redirects
// stderr to the null device, and starts the helper with arguments
// equivalent to `helper --server`. On any failure every fd created so
// far is closed before returning. On success, the helper-side ends of
// all three data pipes have already been closed in the caller process;
// only the caller-side ends and the control pipe survive in the
// returned spawnedPipes.
func spawnHelper(path string, env []string) (*spawnedPipes, *Error) {
	statusR, statusWHelper, err := os.Pipe() // helper writes responses, caller reads
	if err != nil {
		return nil, pipeError(fmt.Sprintf("status read pipe: %v", err))
	}
	statusRHelper, statusW, err := os.Pipe() // caller writes commands, helper reads
	if err != nil {
		statusR.Close()
		statusWHelper.Close()
		return nil, pipeError(fmt.Sprintf("status write pipe: %v", err))
	}
	inputR, inputW, err := os.Pipe()
	if err != nil {
		statusR.Close()
		statusWHelper.Close()
		statusRHelper.Close()
		statusW.Close()
		return nil, pipeError(fmt.Sprintf("input pipe: %v", err))
	}
	outputR, outputW, err := os.Pipe()
	if err != nil {
		statusR.Close()
		statusWHelper.Close()
		statusRHelper.Close()
		statusW.Close()
		inputR.Close()
		inputW.Close()
		return nil, pipeError(fmt.Sprintf("output pipe: %v", err))
	}
	messageR, messageW, err := os.Pipe()
	if err != nil {
		statusR.Close()
		statusWHelper.Close()
		statusRHelper.Close()
		statusW.Close()
		inputR.Close()
		inputW.Close()
		outputR.Close()
		outputW.Close()
		return nil, pipeError(fmt.Sprintf("message pipe: %v", err))
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		statusR.Close()
		statusWHelper.Close()
		statusRHelper.Close()
		statusW.Close()
		inputR.Close()
		inputW.Close()
		outputR.Close()
		outputW.Close()
		messageR.Close()
		messageW.Close()
		return nil, pipeError(fmt.Sprintf("open null device: %v", err))
	}
	defer devnull.Close()

	argv := smimecmd.HelperArgv(path)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Stdin = statusRHelper
	cmd.Stdout = statusWHelper
	cmd.Stderr = devnull
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	// ExtraFiles become fd 3, 4, 5 in the child, in this order.
	cmd.ExtraFiles = []*os.File{inputR, outputW, messageR}

	if err := cmd.Start(); err != nil {
		statusR.Close()
		statusWHelper.Close()
		statusRHelper.Close()
		statusW.Close()
		inputR.Close()
		inputW.Close()
		outputR.Close()
		outputW.Close()
		messageR.Close()
		messageW.Close()
		return nil, pipeError(fmt.Sprintf("spawn helper: %v", err))
	}

	// Helper-side ends are unconditionally closed in the caller process
	// once the child has inherited them, on both the success and
	// failure paths above.
	statusWHelper.Close()
	statusRHelper.Close()
	inputR.Close()
	outputW.Close()
	messageR.Close()

	return &spawnedPipes{
		cmd:             cmd,
		statusW:         statusW,
		statusR:         statusR,
		inputW:          inputW,
		outputR:         outputR,
		messageW:        messageW,
		inputHelperFD:   3,
		outputHelperFD:  4,
		messageHelperFD: 5,
	}, nil
}

// setNonblocking puts fd in non-blocking mode, a kludge the wire design
// requires for outbound channels driven by a readiness-based host loop.
func setNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}
