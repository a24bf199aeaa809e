package rules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// maxStdout caps captured command output; bytes beyond it are
	// discarded, not buffered.
	maxStdout = 50 * 1024 * 1024
	// maxStderr caps the captured error stream.
	maxStderr = 1024 * 1024
	// pipeGrace bounds how long pipe draining may outlive the command.
	// A backgrounded grandchild inherits the pipe write ends and can
	// hold them open long after the command itself exits; once the
	// grace period passes the pipes are force-closed.
	pipeGrace = time.Second
)

// CommandErrorKind classifies why a transformation command failed.
type CommandErrorKind int

const (
	// ErrSpawn covers start failures and broken stdin writes.
	ErrSpawn CommandErrorKind = iota
	// ErrExit is a non-zero exit status.
	ErrExit
	// ErrTimeout means the command was killed after its deadline.
	ErrTimeout
	// ErrEncoding means stdout was not valid UTF-8.
	ErrEncoding
)

// CommandError describes a failed command step. All kinds are
// non-fatal to rule evaluation: the step's input text is preserved.
type CommandError struct {
	Kind   CommandErrorKind
	Msg    string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s", e.Msg, strings.TrimSpace(e.Stderr))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// RunCommand pipes input through argv and returns its stdout as text.
//
// Stdin is written by a dedicated goroutine that closes the pipe when
// done; stdout and stderr are drained concurrently. Without this
// decoupling a child that fills its stdout pipe before consuming all
// input deadlocks against our blocked write. The context deadline
// kills an overrunning command, and WaitDelay force-closes the pipes
// afterwards so a surviving grandchild can never stall collection.
func RunCommand(argv []string, input string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = pipeGrace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", &CommandError{Kind: ErrSpawn, Msg: fmt.Sprintf("failed to open stdin for %q", argv[0]), Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &CommandError{Kind: ErrSpawn, Msg: fmt.Sprintf("failed to open stdout for %q", argv[0]), Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", &CommandError{Kind: ErrSpawn, Msg: fmt.Sprintf("failed to open stderr for %q", argv[0]), Err: err}
	}

	if err := cmd.Start(); err != nil {
		return "", &CommandError{Kind: ErrSpawn, Msg: fmt.Sprintf("failed to spawn %q", argv[0]), Err: err}
	}

	writeDone := make(chan error, 1)
	go func() {
		_, werr := io.WriteString(stdin, input)
		if cerr := stdin.Close(); werr == nil {
			werr = cerr
		}
		writeDone <- werr
	}()

	var (
		outBuf, errBuf bytes.Buffer
		readers        sync.WaitGroup
	)
	readers.Add(2)
	go func() {
		defer readers.Done()
		readCapped(&outBuf, stdout, maxStdout)
	}()
	go func() {
		defer readers.Done()
		readCapped(&errBuf, stderr, maxStderr)
	}()

	// Wait closes the pipes once the command exits (forcibly after the
	// grace period), which unblocks the readers and the writer.
	waitErr := cmd.Wait()
	readers.Wait()
	writeErr := <-writeDone

	// ErrWaitDelay means the command itself succeeded and only the
	// force-closed pipes cut collection short; the output stands.
	if waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay) {
		if ctx.Err() != nil {
			return "", &CommandError{
				Kind:   ErrTimeout,
				Msg:    fmt.Sprintf("command %q timed out after %s", argv[0], timeout),
				Stderr: errBuf.String(),
			}
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return "", &CommandError{
				Kind:   ErrExit,
				Msg:    fmt.Sprintf("command %q exited with %s", argv[0], exitErr.ProcessState),
				Stderr: errBuf.String(),
				Err:    waitErr,
			}
		}
		return "", &CommandError{Kind: ErrSpawn, Msg: fmt.Sprintf("failed to wait for %q", argv[0]), Err: waitErr}
	}
	if writeErr != nil {
		return "", &CommandError{Kind: ErrSpawn, Msg: fmt.Sprintf("failed to write input to %q", argv[0]), Err: writeErr}
	}

	out := outBuf.Bytes()
	if !utf8.Valid(out) {
		return "", &CommandError{Kind: ErrEncoding, Msg: fmt.Sprintf("command %q output is not valid UTF-8", argv[0])}
	}
	return string(out), nil
}

// readCapped copies up to max bytes into buf and discards the rest so
// a misbehaving child can never blow up resident memory.
func readCapped(buf *bytes.Buffer, r io.Reader, max int64) {
	_, _ = io.CopyN(buf, r, max)
	_, _ = io.Copy(io.Discard, r)
}
