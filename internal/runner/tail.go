package runner

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// Tail is an io.Writer that keeps the last n complete lines written to it.
type Tail struct {
	mu      sync.Mutex
	n       int
	lines   []string
	partial bytes.Buffer
}

// NewTail creates a Tail keeping n lines.
func NewTail(n int) *Tail {
	if n <= 0 {
		n = DefaultTailLines
	}
	return &Tail{n: n}
}

func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.partial.Write(p)
	for {
		data := t.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		t.push(strings.TrimRight(string(data[:i]), "\r"))
		t.partial.Next(i + 1)
	}
	return len(p), nil
}

func (t *Tail) push(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

// Lines returns the retained lines, including a trailing unterminated line.
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.lines)+1)
	out = append(out, t.lines...)
	if t.partial.Len() > 0 {
		out = append(out, strings.TrimRight(t.partial.String(), "\r"))
		if len(out) > t.n {
			out = out[len(out)-t.n:]
		}
	}
	return out
}

// String joins the retained lines.
func (t *Tail) String() string {
	return strings.Join(t.Lines(), "\n")
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
