package onset

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"
)

// maxLineLength is the longest line passed to a LineFunc. Longer lines are
// split into chunks of this size.
const maxLineLength = 64 * 1024

var (
	errNotRedirected  = errors.New("stream is not redirected")
	errNotStarted     = errors.New("process not started")
	errAlreadyReading = errors.New("asynchronous read already started")
)

// Process describes a child process and how its output is captured. The
// lifetime of the process is owned by the caller: Process never starts or
// kills it on its own.
type Process struct {
	// Cmd is the underlying command.
	Cmd *exec.Cmd
	// UseShell marks a command executed through the system shell. Its output
	// cannot be captured.
	UseShell bool
	// HideWindow suppresses any console window of the child.
	HideWindow bool
	// RedirectStdout and RedirectStderr capture the respective streams. They
	// must be set before Start.
	RedirectStdout bool
	RedirectStderr bool
	// OnStdout and OnStderr receive each captured line, in order.
	OnStdout LineFunc
	OnStderr LineFunc
	// DrainTimeout bounds how long cancelling a read waits for buffered lines.
	DrainTimeout time.Duration

	mu     sync.Mutex
	stdout *stream
	stderr *stream
}

// NewProcess wraps cmd.
func NewProcess(cmd *exec.Cmd) *Process {
	return &Process{Cmd: cmd, DrainTimeout: time.Second}
}

// shellArgs returns the command line running line through the system shell.
func shellArgs(line string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", line}
	}
	return "/bin/sh", []string{"-c", line}
}

// Start starts the process. When a stream is redirected, its pipe is created
// here if it does not exist yet.
func (p *Process) Start() error {
	if err := p.openPipes(); err != nil {
		return err
	}
	if p.HideWindow {
		hideWindow(p.Cmd)
	}
	return p.Cmd.Start()
}

// Wait waits for the process to exit.
func (p *Process) Wait() error {
	return p.Cmd.Wait()
}

// BeginOutputRead starts reading stdout lines asynchronously.
func (p *Process) BeginOutputRead() error {
	return p.begin(func() *stream { return p.stdout }, p.OnStdout)
}

// BeginErrorRead starts reading stderr lines asynchronously.
func (p *Process) BeginErrorRead() error {
	return p.begin(func() *stream { return p.stderr }, p.OnStderr)
}

// CancelOutputRead waits for buffered stdout lines up to DrainTimeout, then
// stops reading. Lines written afterwards are dropped.
func (p *Process) CancelOutputRead() error {
	return p.cancel(func() *stream { return p.stdout })
}

// CancelErrorRead waits for buffered stderr lines up to DrainTimeout, then
// stops reading.
func (p *Process) CancelErrorRead() error {
	return p.cancel(func() *stream { return p.stderr })
}

// openPipes creates the pipes of the redirected streams. This function is
// idempotent.
func (p *Process) openPipes() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RedirectStdout && p.stdout == nil {
		s, err := newStream()
		if err != nil {
			return err
		}
		p.stdout = s
		p.Cmd.Stdout = s.w
	}
	if p.RedirectStderr && p.stderr == nil {
		s, err := newStream()
		if err != nil {
			return err
		}
		p.stderr = s
		p.Cmd.Stderr = s.w
	}
	return nil
}

func (p *Process) begin(get func() *stream, onLine LineFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := get()
	if s == nil {
		return errNotRedirected
	}
	if p.Cmd.Process == nil {
		return errNotStarted
	}
	return s.begin(onLine)
}

func (p *Process) cancel(get func() *stream) error {
	p.mu.Lock()
	s := get()
	p.mu.Unlock()
	if s == nil {
		return errNotRedirected
	}
	return s.cancel(p.DrainTimeout)
}

// stream is one redirected output of a child process. The child writes to w;
// the parent reads lines from r.
type stream struct {
	r, w *os.File

	mu      sync.Mutex
	reading bool
	done    chan struct{}

	closeW sync.Once
	closeR sync.Once
}

func newStream() (*stream, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &stream{r: r, w: w, done: make(chan struct{})}, nil
}

func (s *stream) begin(onLine LineFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reading {
		return errAlreadyReading
	}
	s.reading = true
	// The child holds its own copy of w; ours must go so that r sees EOF
	// when the child exits.
	s.closeWriter()
	go s.read(onLine)
	return nil
}

func (s *stream) read(onLine LineFunc) {
	defer close(s.done)
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 4096), maxLineLength)
	scanner.Split(scanChunkedLines)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	// The child blocks on a full pipe if nobody reads it.
	if scanner.Err() != nil {
		io.Copy(io.Discard, s.r)
	}
}

// scanChunkedLines is bufio.ScanLines, except that a line not terminated
// within maxLineLength bytes is returned in chunks.
func scanChunkedLines(data []byte, atEOF bool) (int, []byte, error) {
	advance, token, err := bufio.ScanLines(data, atEOF)
	if advance == 0 && token == nil && err == nil && len(data) >= maxLineLength {
		return maxLineLength, data[:maxLineLength], nil
	}
	return advance, token, err
}

func (s *stream) cancel(timeout time.Duration) error {
	s.mu.Lock()
	reading := s.reading
	s.mu.Unlock()

	s.closeWriter()
	var err error
	if reading {
		t := time.NewTimer(timeout)
		select {
		case <-s.done:
		case <-t.C:
			err = errors.New("output not drained before timeout")
		}
		t.Stop()
	}
	s.closeR.Do(func() {
		if cerr := s.r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

func (s *stream) closeWriter() {
	s.closeW.Do(func() {
		s.w.Close()
	})
}
