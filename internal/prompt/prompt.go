// Package prompt asks the user the questions a build may need answered:
// whether to run data preprocessing, and whether to continue after it failed.
//
// The policy is chosen once per run. Interactive runs read answers from a
// terminal; non-interactive runs (no TTY, CI set, or --non-interactive) never
// block and answer with fixed defaults.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"
	"golang.org/x/term"

	"git.home.luguber.info/inful/appbuilder/internal/platform"
)

// Choice is the answer to the preprocessing question.
type Choice int

const (
	ChoiceRun Choice = iota
	ChoiceSkip
	// ChoiceSkipAll skips and suppresses the question for the rest of the session.
	ChoiceSkipAll
)

func (c Choice) String() string {
	switch c {
	case ChoiceRun:
		return "run"
	case ChoiceSkip:
		return "skip"
	case ChoiceSkipAll:
		return "skip-all"
	default:
		return fmt.Sprintf("choice(%d)", int(c))
	}
}

// PreprocessQuestion carries what the user sees before deciding.
type PreprocessQuestion struct {
	Platform platform.Platform
	Profile  string
	// LastRun is the marker timestamp; zero when no marker exists.
	LastRun time.Time
}

// Stale reports whether no marker exists.
func (q PreprocessQuestion) Stale() bool { return q.LastRun.IsZero() }

// Policy answers build questions.
type Policy interface {
	Interactive() bool
	AskPreprocess(ctx context.Context, q PreprocessQuestion) (Choice, error)
	// ConfirmContinue asks whether to go on after a failure. The default is no.
	ConfirmContinue(ctx context.Context, message string) (bool, error)
}

// Detect picks the policy for this process: interactive only when stdin is a
// terminal, CI is unset and nonInteractive is false.
func Detect(nonInteractive bool) Policy {
	if nonInteractive || os.Getenv("CI") != "" || !term.IsTerminal(int(os.Stdin.Fd())) {
		return NonInteractivePolicy{}
	}
	return NewInteractive(os.Stdin, os.Stdout)
}

// NonInteractivePolicy never prompts.
type NonInteractivePolicy struct{}

func (NonInteractivePolicy) Interactive() bool { return false }

// AskPreprocess always skips; callers warn when the data is stale.
func (NonInteractivePolicy) AskPreprocess(context.Context, PreprocessQuestion) (Choice, error) {
	return ChoiceSkip, nil
}

// ConfirmContinue always declines.
func (NonInteractivePolicy) ConfirmContinue(context.Context, string) (bool, error) {
	return false, nil
}

// InteractivePolicy reads answers line by line.
type InteractivePolicy struct {
	// mu ensures only one prompt reads input at a time across parallel pipelines.
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewInteractive creates a policy reading from in and writing prompts to out.
func NewInteractive(in io.Reader, out io.Writer) *InteractivePolicy {
	return &InteractivePolicy{in: bufio.NewReader(in), out: out}
}

func (p *InteractivePolicy) Interactive() bool { return true }

// AskPreprocess asks run / skip / skip-all. An empty answer runs when the data
// is stale and skips otherwise. End of input skips.
func (p *InteractivePolicy) AskPreprocess(ctx context.Context, q PreprocessQuestion) (Choice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	def := ChoiceSkip
	if q.Stale() {
		def = ChoiceRun
		_, _ = fmt.Fprintln(p.out, color.Warn.Sprintf("No data preprocessing recorded for %s/%s.", q.Platform, q.Profile))
	} else {
		_, _ = fmt.Fprintln(p.out, color.Info.Sprintf("Data preprocessing for %s/%s last ran %s.",
			q.Platform, q.Profile, q.LastRun.Local().Format(time.DateTime)))
	}

	options := "[R]un / [s]kip / skip [a]ll"
	if def == ChoiceSkip {
		options = "[r]un / [S]kip / skip [a]ll"
	}

	for {
		_, _ = fmt.Fprint(p.out, color.Question.Sprintf("Run data preprocessing now? %s: ", options))
		answer, err := p.readLine(ctx)
		if err != nil {
			if err == io.EOF {
				_, _ = fmt.Fprintln(p.out)
				return ChoiceSkip, nil
			}
			return ChoiceSkip, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "r", "run", "y", "yes":
			return ChoiceRun, nil
		case "s", "skip", "n", "no":
			return ChoiceSkip, nil
		case "a", "all", "skip-all", "skipall":
			return ChoiceSkipAll, nil
		}
		_, _ = fmt.Fprintln(p.out, color.Warn.Sprint("Invalid input."))
	}
}

// ConfirmContinue asks a yes/no question defaulting to no.
func (p *InteractivePolicy) ConfirmContinue(ctx context.Context, message string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		_, _ = fmt.Fprint(p.out, color.Question.Sprintf("%s [y/N]: ", message))
		answer, err := p.readLine(ctx)
		if err != nil {
			if err == io.EOF {
				_, _ = fmt.Fprintln(p.out)
				return false, nil
			}
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		}
		_, _ = fmt.Fprintln(p.out, color.Warn.Sprint("Invalid input."))
	}
}

type lineResult struct {
	line string
	err  error
}

// readLine returns the next trimmed line or ctx.Err() when the context ends first.
func (p *InteractivePolicy) readLine(ctx context.Context) (string, error) {
	ch := make(chan lineResult, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- lineResult{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}
