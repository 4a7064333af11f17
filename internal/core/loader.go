package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"syscall"
)

var (
	// ErrRelativePath marks a worklist line that is not an absolute path.
	ErrRelativePath = errors.New("path is not absolute")

	// ErrMissingPath marks a worklist line naming a path that does not exist.
	ErrMissingPath = errors.New("path does not exist")
)

// WorklistError reports a malformed worklist line. It is always fatal to the run.
type WorklistError struct {
	Source string
	Line   int
	Text   string
	Err    error
}

func (e *WorklistError) Error() string {
	return fmt.Sprintf("worklist %s:%d: %q: %v", e.Source, e.Line, e.Text, e.Err)
}

func (e *WorklistError) Unwrap() error { return e.Err }

// WorklistLoader reads worklist lines into a Worklist.
//
// Blank lines and lines beginning with '#' are ignored. Every other line must
// be an absolute path to an existing file or directory; the first violation
// aborts loading.
type WorklistLoader struct {
	wl *Worklist
}

// NewWorklistLoader returns a loader accumulating into a fresh Worklist.
func NewWorklistLoader() *WorklistLoader {
	return &WorklistLoader{wl: NewWorklist()}
}

// Worklist returns the accumulated worklist.
func (l *WorklistLoader) Worklist() *Worklist { return l.wl }

// AddLine validates one raw line. source and line locate it in error messages.
func (l *WorklistLoader) AddLine(source string, line int, text string) error {
	literal := strings.TrimSpace(text)
	if line == 1 {
		literal = strings.TrimPrefix(literal, "\ufeff")
	}
	if literal == "" || strings.HasPrefix(literal, "#") {
		return nil
	}

	canonical, err := Canonicalize(literal)
	if err != nil {
		switch {
		case errors.Is(err, ErrRelativePath):
			err = ErrRelativePath
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
			err = ErrMissingPath
		}
		return &WorklistError{Source: source, Line: line, Text: literal, Err: err}
	}

	l.wl.add(literal, canonical)
	return nil
}

// Read consumes every line of r.
func (l *WorklistLoader) Read(r io.Reader, source string) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if err := l.AddLine(source, n, sc.Text()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading worklist %s: %w", source, err)
	}
	return nil
}

// ReadFile consumes the worklist file at path.
func (l *WorklistLoader) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening worklist: %w", err)
	}
	defer f.Close()
	return l.Read(f, path)
}

// LoadWorklist reads a worklist from r.
func LoadWorklist(r io.Reader, source string) (*Worklist, error) {
	l := NewWorklistLoader()
	if err := l.Read(r, source); err != nil {
		return nil, err
	}
	return l.Worklist(), nil
}

// LoadWorklistFile reads the worklist file at path.
func LoadWorklistFile(path string) (*Worklist, error) {
	l := NewWorklistLoader()
	if err := l.ReadFile(path); err != nil {
		return nil, err
	}
	return l.Worklist(), nil
}
