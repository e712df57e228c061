package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/ZaguanLabs/livetl"
	"github.com/ZaguanLabs/livetl/config"
	"github.com/ZaguanLabs/livetl/dom"
	"github.com/ZaguanLabs/livetl/processor"
)

// Mode is how the scheduler learns about changes.
type Mode string

const (
	ModeStopped   Mode = "stopped"
	ModeObserving Mode = "observing"
	ModePolling   Mode = "polling"
)

// PassResult reports one finished pass.
type PassResult struct {
	Request  Request
	Context  string
	Root     string
	Result   processor.Result
	Err      error
	Duration time.Duration
}

// Scheduler keeps a document translated. One goroutine owns the state
// machine and both timers and runs passes synchronously, so passes never
// overlap.
type Scheduler struct {
	doc        *dom.Document
	applier    *processor.Applier
	cfg        *config.Config
	classifier *config.Classifier
	logger     *slog.Logger
	onPass     func(PassResult)
	now        func() time.Time

	wake      chan struct{}
	requested chan struct{}

	mu       sync.Mutex
	buffered []dom.MutationRecord
	pending  *request
	mode     Mode
	context  string
	rootDesc string

	cancel context.CancelFunc
	done   chan struct{}

	// Owned by the run goroutine.
	machine   *Machine
	detector  *Detector
	tuning    config.Tuning
	root      *html.Node
	observers []*dom.Observer
	evaluated []dom.MutationRecord
}

type request struct {
	reason string
	path   string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPassHook registers a function called after every pass on the
// scheduler goroutine.
func WithPassHook(fn func(PassResult)) Option {
	return func(s *Scheduler) { s.onPass = fn }
}

// New creates a stopped scheduler.
func New(doc *dom.Document, applier *processor.Applier, cfg *config.Config, opts ...Option) (*Scheduler, error) {
	classifier, err := config.NewClassifier(cfg.Contexts)
	if err != nil {
		return nil, &livetl.ConfigError{Message: "invalid context rules", Cause: err}
	}
	s := &Scheduler{
		doc:        doc,
		applier:    applier,
		cfg:        cfg,
		classifier: classifier,
		logger:     slog.Default(),
		now:        time.Now,
		wake:       make(chan struct{}, 1),
		requested:  make(chan struct{}, 1),
		mode:       ModeStopped,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start classifies path, attaches change detection and requests an initial
// pass. It returns once the scheduler goroutine is running.
func (s *Scheduler) Start(ctx context.Context, path string) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.enterContext(path)
	go s.run(ctx)
	s.Request("initial")
	return nil
}

// Stop stops the scheduler goroutine, waiting for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Request asks for a pass. Requests inside the throttle window coalesce.
func (s *Scheduler) Request(reason string) {
	s.enqueue(request{reason: reason})
}

// Navigate reclassifies the page for a new path, reselects the root and
// requests a pass.
func (s *Scheduler) Navigate(path string) {
	s.enqueue(request{reason: "navigate", path: path})
}

// enqueue folds r into the single pending request. The latest reason wins
// and a navigation path is kept until the run goroutine takes it.
func (s *Scheduler) enqueue(r request) {
	s.mu.Lock()
	if s.pending == nil {
		s.pending = &request{}
	}
	s.pending.reason = r.reason
	if r.path != "" {
		s.pending.path = r.path
	}
	s.mu.Unlock()

	select {
	case s.requested <- struct{}{}:
	default:
	}
}

func (s *Scheduler) takeRequest() (request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return request{}, false
	}
	r := *s.pending
	s.pending = nil
	return r, true
}

// Mode reports how changes are detected.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Context returns the current page context.
func (s *Scheduler) Context() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// Root describes the observed root element.
func (s *Scheduler) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootDesc
}

// enterContext applies the tuning of path's context and reattaches
// observation. It runs before the goroutine starts or on it.
func (s *Scheduler) enterContext(path string) {
	name := s.classifier.Classify(path)
	s.tuning = s.cfg.TuningFor(name)
	s.detector = NewDetector(s.tuning, s.cfg)
	if s.machine == nil {
		s.machine = NewMachine(s.tuning)
	} else {
		s.machine.SetTuning(s.tuning)
	}

	s.mu.Lock()
	s.context = name
	s.mu.Unlock()

	s.attach()
	s.logger.Info("page context selected",
		"path", path,
		"context", name,
		"root", s.Root(),
		"mode", s.Mode(),
		"throttle", s.tuning.ThrottleInterval(),
	)
}

// selectRoot returns the first root candidate present in the document,
// or the document itself.
func (s *Scheduler) selectRoot() *html.Node {
	for _, sel := range s.tuning.Roots {
		if nodes := s.doc.Query(s.doc.Root(), sel); len(nodes) > 0 {
			return nodes[0]
		}
	}
	return s.doc.Root()
}

func (s *Scheduler) attach() {
	s.detach()
	s.root = s.selectRoot()

	var desc string
	s.doc.View(func() { desc = dom.Describe(s.root) })

	opts := dom.ObserveOptions{
		ChildList:     true,
		CharacterData: true,
		Attributes:    s.cfg.WatchedAttributes,
	}
	mode := ModeObserving
	o, err := s.doc.Observe(s.root, opts, s.collect)
	if err == nil {
		s.observers = append(s.observers, o)
		if s.root != s.doc.Root() {
			// Overlays are often appended outside the root.
			t, err := s.doc.Observe(s.doc.Root(), dom.ObserveOptions{ChildList: true}, s.collect)
			if err == nil {
				s.observers = append(s.observers, t)
			} else {
				s.logger.Warn("transient region observer not attached", "error", err)
			}
		}
	} else {
		var attachErr *livetl.ObserverAttachError
		if !errors.As(err, &attachErr) {
			s.logger.Warn("observer attach failed", "error", err)
		}
		s.logger.Warn("falling back to polling", "root", desc, "interval", s.cfg.PollPeriod(), "error", err)
		mode = ModePolling
	}

	s.mu.Lock()
	s.mode = mode
	s.rootDesc = desc
	s.mu.Unlock()
}

func (s *Scheduler) detach() {
	for _, o := range s.observers {
		o.Disconnect()
	}
	s.observers = nil
}

// collect is the observer callback. It runs on whichever goroutine updated
// the document, so it only buffers and signals.
func (s *Scheduler) collect(records []dom.MutationRecord) {
	var kept []dom.MutationRecord
	for _, r := range records {
		if r.Origin == dom.OriginInternal {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return
	}

	s.mu.Lock()
	s.buffered = append(s.buffered, kept...)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) drain() []dom.MutationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.buffered
	s.buffered = nil
	return records
}

func (s *Scheduler) run(ctx context.Context) {
	debounce := newTimer()
	throttle := newTimer()
	var poll *time.Ticker
	var pollC <-chan time.Time

	defer func() {
		debounce.stop()
		throttle.stop()
		if poll != nil {
			poll.Stop()
		}
		s.detach()
		s.mu.Lock()
		s.mode = ModeStopped
		close(s.done)
		s.mu.Unlock()
	}()

	syncPolling := func() {
		if s.Mode() == ModePolling && poll == nil {
			poll = time.NewTicker(s.cfg.PollPeriod())
			pollC = poll.C
		} else if s.Mode() != ModePolling && poll != nil {
			poll.Stop()
			poll, pollC = nil, nil
		}
	}
	syncPolling()

	var apply func(Effect)
	apply = func(eff Effect) {
		if eff.StopDebounce {
			debounce.stop()
		}
		if eff.Debounce > 0 {
			debounce.reset(eff.Debounce)
		}
		if eff.Throttle > 0 {
			throttle.reset(eff.Throttle)
		}
		if eff.Evaluate {
			apply(s.machine.Step(s.evaluate()))
		}
		if eff.Run != nil {
			s.pass(ctx, *eff.Run)
			syncPolling()
			apply(s.machine.Step(PassDone{At: s.now()}))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.wake:
			records := s.drain()
			var kept []dom.MutationRecord
			var urgent bool
			s.doc.View(func() { kept, urgent = s.detector.Filter(records) })
			if len(kept) == 0 {
				continue
			}
			s.evaluated = append(s.evaluated, kept...)
			apply(s.machine.Step(MutationsSeen{At: s.now(), Urgent: urgent}))

		case <-s.requested:
			r, ok := s.takeRequest()
			if !ok {
				continue
			}
			if r.path != "" {
				s.enterContext(r.path)
				syncPolling()
			}
			apply(s.machine.Step(Requested{At: s.now(), Request: s.newRequest(r.reason, Verdict{Translate: true})}))

		case <-debounce.c:
			debounce.fired()
			apply(s.machine.Step(DebounceElapsed{At: s.now()}))

		case <-throttle.c:
			throttle.fired()
			apply(s.machine.Step(ThrottleElapsed{At: s.now()}))

		case <-pollC:
			if s.doc.Visible() {
				apply(s.machine.Step(Requested{At: s.now(), Request: s.newRequest("poll", Verdict{Translate: true})}))
			}
		}
	}
}

// evaluate classifies the records gathered since the last evaluation.
func (s *Scheduler) evaluate() Evaluated {
	records := s.evaluated
	s.evaluated = nil

	var v Verdict
	s.doc.View(func() { v = s.detector.Classify(records) })
	s.logger.Debug("mutations evaluated",
		"records", len(records),
		"path", v.Path,
		"inspected", v.Inspected,
		"content", v.Content,
		"important", v.Important,
		"score", v.Score,
		"translate", v.Translate,
	)
	return Evaluated{At: s.now(), Request: s.newRequest("mutations", v)}
}

func (s *Scheduler) newRequest(reason string, v Verdict) Request {
	return Request{ID: uuid.NewString(), Reason: reason, At: s.now(), Verdict: v}
}

// pass runs one translation pass to completion.
func (s *Scheduler) pass(ctx context.Context, req Request) {
	start := s.now()
	s.evaluated = nil

	if !s.doc.Contains(s.root) {
		s.logger.Info("observed root detached, reselecting")
		s.attach()
	}

	elements := processor.Collect(s.doc, []*html.Node{s.root}, s.cfg.Locators)
	res, err := s.applier.With(s.tuning.BatchSize, s.tuning.PartialMatch).Apply(ctx, s.doc, elements)

	pr := PassResult{
		Request:  req,
		Context:  s.Context(),
		Root:     s.Root(),
		Result:   res,
		Err:      err,
		Duration: s.now().Sub(start),
	}
	level := slog.LevelDebug
	if err != nil && !errors.Is(err, context.Canceled) {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "translation pass finished",
		"pass_id", req.ID,
		"reason", req.Reason,
		"context", pr.Context,
		"elements", len(elements),
		"translated", res.Translated,
		"batches", len(res.BatchSizes),
		"duration", pr.Duration,
		"error", err,
	)
	if s.onPass != nil {
		s.onPass(pr)
	}
}

// timer wraps time.Timer so it can be reset without stacking or leaking.
type timer struct {
	t *time.Timer
	c <-chan time.Time
}

func newTimer() *timer { return &timer{} }

func (t *timer) reset(d time.Duration) {
	if t.t == nil {
		t.t = time.NewTimer(d)
	} else {
		t.t.Stop()
		t.t.Reset(d)
	}
	t.c = t.t.C
}

func (t *timer) stop() {
	if t.t != nil {
		t.t.Stop()
	}
	t.c = nil
}

func (t *timer) fired() { t.c = nil }
