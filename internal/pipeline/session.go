package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
	"git.home.luguber.info/inful/appbuilder/internal/metrics"
	"git.home.luguber.info/inful/appbuilder/internal/observability"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
	"git.home.luguber.info/inful/appbuilder/internal/preprocess"
	"git.home.luguber.info/inful/appbuilder/internal/prompt"
	"git.home.luguber.info/inful/appbuilder/internal/staleness"
)

// Decision is the outcome of the preprocessing decision for one platform.
type Decision string

const (
	DecisionRun        Decision = "run"
	DecisionForced     Decision = "forced"
	DecisionSkip       Decision = "skip"
	DecisionSkipAll    Decision = "skip_all"
	DecisionDisabled   Decision = "disabled"
	DecisionFresh      Decision = "fresh"
	DecisionReused     Decision = "reused"
	DecisionSuppressed Decision = "suppressed"
	DecisionFailed     Decision = "failed"
)

// Outcome describes what the session did for one platform.
type Outcome struct {
	Decision Decision
	// Ran is true only for the pipeline that executed preprocessing.
	Ran bool
	// Continued is true when preprocessing failed and the user chose to build anyway.
	Continued bool
	LastRun   time.Time
}

// SessionConfig wires a Session.
type SessionConfig struct {
	Tracker         staleness.Tracker
	Prompts         prompt.Policy
	Preprocessor    preprocess.Runner
	SharedPlatforms []platform.Platform
	PromptWhenFresh bool
	Recorder        metrics.Recorder
	Now             func() time.Time
}

// Session holds the preprocessing state shared by every pipeline of one run.
// The decision, the preprocessing run and the marker writes happen under one
// lock, so pipelines running in parallel observe each other's result.
type Session struct {
	cfg SessionConfig

	mu         sync.Mutex
	ran        bool
	attempted  bool
	continued  bool
	failure    error
	suppressed bool
}

// NewSession creates a session. Recorder and Now default to noop and time.Now.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Prompts == nil {
		cfg.Prompts = prompt.NonInteractivePolicy{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.SharedPlatforms) == 0 {
		cfg.SharedPlatforms = platform.All()
	}
	return &Session{cfg: cfg}
}

// Ran reports whether preprocessing succeeded during this session.
func (s *Session) Ran() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ran
}

// Suppressed reports whether the user chose skip-all.
func (s *Session) Suppressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressed
}

// Preprocess decides whether preprocessing runs for p and runs it when needed.
// A returned error fails the calling pipeline.
func (s *Session) Preprocess(ctx context.Context, p platform.Platform, req Request) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, err := s.preprocessLocked(ctx, p, req)
	s.cfg.Recorder.IncPreprocessDecision(string(outcome.Decision))
	return outcome, err
}

func (s *Session) preprocessLocked(ctx context.Context, p platform.Platform, req Request) (Outcome, error) {
	switch {
	case req.SkipPreprocessing:
		observability.InfoContext(ctx, "Preprocessing disabled for this run")
		return Outcome{Decision: DecisionDisabled}, nil
	case s.ran:
		observability.DebugContext(ctx, "Preprocessing already ran in this session")
		return Outcome{Decision: DecisionReused}, nil
	case s.attempted && s.continued:
		return Outcome{Decision: DecisionReused, Continued: true}, nil
	case s.attempted && s.failure != nil:
		return Outcome{Decision: DecisionFailed}, s.failure
	case s.suppressed:
		return Outcome{Decision: DecisionSuppressed}, nil
	case req.ForcePreprocessing:
		return s.run(ctx, p, req.Profile, Outcome{Decision: DecisionForced})
	}

	key := staleness.Key{Platform: p, Profile: req.Profile}
	marker, found, err := s.cfg.Tracker.Lookup(ctx, key)
	if err != nil {
		return Outcome{Decision: DecisionFailed}, err
	}
	var lastRun time.Time
	if found {
		lastRun = marker.RecordedAt
		observability.DebugContext(ctx, "Preprocessing marker present; input changes since then are not tracked",
			slog.Time("recorded_at", lastRun))
	}

	if !s.cfg.Prompts.Interactive() {
		if !found {
			observability.WarnContext(ctx, "Preprocessed data may be stale for this profile; building without preprocessing",
				logfields.Profile(req.Profile))
			return Outcome{Decision: DecisionSkip}, nil
		}
		return Outcome{Decision: DecisionFresh, LastRun: lastRun}, nil
	}

	if found && !s.cfg.PromptWhenFresh {
		return Outcome{Decision: DecisionFresh, LastRun: lastRun}, nil
	}

	choice, err := s.cfg.Prompts.AskPreprocess(ctx, prompt.PreprocessQuestion{
		Platform: p,
		Profile:  req.Profile,
		LastRun:  lastRun,
	})
	if err != nil {
		return Outcome{Decision: DecisionFailed, LastRun: lastRun}, err
	}
	switch choice {
	case prompt.ChoiceRun:
		return s.run(ctx, p, req.Profile, Outcome{Decision: DecisionRun, LastRun: lastRun})
	case prompt.ChoiceSkipAll:
		s.suppressed = true
		return Outcome{Decision: DecisionSkipAll, LastRun: lastRun}, nil
	default:
		return Outcome{Decision: DecisionSkip, LastRun: lastRun}, nil
	}
}

func (s *Session) run(ctx context.Context, p platform.Platform, profile string, outcome Outcome) (Outcome, error) {
	if s.cfg.Preprocessor == nil {
		return Outcome{Decision: DecisionFailed}, errors.InternalError("no preprocessing runner configured").Build()
	}
	s.attempted = true

	err := s.cfg.Preprocessor.RunPreprocessing(ctx, profile)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryCanceled) || ctx.Err() != nil {
			s.failure = err
			return Outcome{Decision: DecisionFailed}, err
		}
		if s.cfg.Prompts.Interactive() {
			observability.ErrorContext(ctx, "Preprocessing failed", logfields.Error(err),
				logfields.LogPath(errors.ContextString(err, errors.KeyLogPath)))
			proceed, askErr := s.cfg.Prompts.ConfirmContinue(ctx, "Preprocessing failed. Continue with the build anyway?")
			if askErr == nil && proceed {
				s.continued = true
				outcome.Continued = true
				return outcome, nil
			}
		}
		s.failure = err
		return Outcome{Decision: DecisionFailed}, err
	}

	s.ran = true
	outcome.Ran = true
	s.recordMarkers(ctx, p, profile)
	return outcome, nil
}

// recordMarkers writes a marker for every platform sharing the preprocessed data.
// A failed write only costs a prompt on the next run, so it is logged.
func (s *Session) recordMarkers(ctx context.Context, current platform.Platform, profile string) {
	targets := slices.Clone(s.cfg.SharedPlatforms)
	if !slices.Contains(targets, current) {
		targets = append(targets, current)
	}
	at := s.cfg.Now()
	for _, target := range targets {
		key := staleness.Key{Platform: target, Profile: profile}
		if err := s.cfg.Tracker.RecordSuccess(ctx, key, at); err != nil {
			observability.WarnContext(ctx, "Failed to record preprocessing marker",
				logfields.Platform(string(target)), logfields.Error(err))
			continue
		}
		observability.DebugContext(ctx, "Recorded preprocessing marker", logfields.Platform(string(target)))
	}
}
