package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hedgegraph/config"
	"hedgegraph/internal/chart"
	"hedgegraph/internal/domain"
	"hedgegraph/internal/loader"
	"hedgegraph/internal/ports"
)

// Session turns intents into load episodes and drives each episode's pages
// through the fetcher, one request at a time.
//
// All episode state is owned by the goroutine running Run. Other goroutines
// talk to it only through Submit and the page results of the fetches it
// starts.
type Session struct {
	cfg      *config.Config
	logger   ports.Logger
	fetcher  ports.KlineFetcher
	listener ports.Listener
	exporter ports.Exporter // optional
	now      func() time.Time

	intents chan envelope
	results chan pageResult
	done    chan struct{}

	// Owned by Run.
	symbol  string
	episode *episode
}

type envelope struct {
	intent Intent
	reply  chan error
}

type episode struct {
	id     uuid.UUID
	symbol string
	window domain.TimeWindow
	state  *loader.State
	export bool
	ctx    context.Context
	cancel context.CancelFunc
}

type pageResult struct {
	episode uuid.UUID
	page    int
	from    time.Time
	klines  []*domain.Kline
	err     error
}

// NewSession creates a session. exporter may be nil when exports are not needed.
func NewSession(
	cfg *config.Config,
	logger ports.Logger,
	fetcher ports.KlineFetcher,
	listener ports.Listener,
	exporter ports.Exporter,
) (*Session, error) {
	// Validate dependencies
	if cfg == nil || logger == nil || fetcher == nil || listener == nil {
		return nil, fmt.Errorf("missing required dependencies for Session")
	}

	// Validate config values needed by the session
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("configuration PageSize must be positive")
	}
	if !cfg.DefaultInterval.Valid() {
		return nil, fmt.Errorf("configuration DefaultInterval %q is not supported", cfg.DefaultInterval)
	}
	if cfg.DefaultLookback <= 0 {
		return nil, fmt.Errorf("configuration DefaultLookback must be positive")
	}

	return &Session{
		cfg:      cfg,
		logger:   logger,
		fetcher:  fetcher,
		listener: listener,
		exporter: exporter,
		now:      time.Now,
		intents:  make(chan envelope),
		results:  make(chan pageResult),
		done:     make(chan struct{}),
	}, nil
}

// Run processes intents and page results until ctx is cancelled.
// It must be called exactly once.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	s.logger.Info(ctx, "Session started", map[string]interface{}{"pageSize": s.cfg.PageSize, "defaultInterval": s.cfg.DefaultInterval})

	for {
		select {
		case <-ctx.Done():
			s.abandon(ctx, "shutdown")
			s.logger.Info(ctx, "Session stopped")
			return nil
		case env := <-s.intents:
			env.reply <- s.handle(ctx, env.intent)
		case res := <-s.results:
			s.apply(ctx, res)
		}
	}
}

// Submit delivers an intent and waits until the session has accepted or
// rejected it. Rejections are *domain.ValidationError values and leave the
// current episode untouched.
func (s *Session) Submit(ctx context.Context, intent Intent) error {
	if intent == nil {
		return &domain.ValidationError{Field: "intent", Reason: "nil intent"}
	}

	reply := make(chan error, 1)
	select {
	case s.intents <- envelope{intent: intent, reply: reply}:
	case <-s.done:
		return ports.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-s.done:
		// Run may have answered right before exiting.
		select {
		case err := <-reply:
			return err
		default:
			return ports.ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) handle(ctx context.Context, intent Intent) error {
	switch it := intent.(type) {
	case SelectSymbol:
		symbol := normalizeSymbol(it.Symbol)
		if symbol == "" {
			return &domain.ValidationError{Field: "symbol", Reason: "symbol must not be empty"}
		}
		window, err := domain.LookbackWindow(s.now(), s.cfg.DefaultLookback, s.cfg.DefaultInterval)
		if err != nil {
			return err
		}
		if err := s.start(ctx, symbol, window, false, "symbol selected"); err != nil {
			return err
		}
		s.symbol = symbol
		return nil

	case ChooseRange:
		symbol := s.symbol
		if it.Symbol != "" {
			symbol = normalizeSymbol(it.Symbol)
		}
		if symbol == "" {
			return errNoSymbol
		}
		window, err := domain.NewTimeWindow(it.Start, it.End, it.Interval)
		if err != nil {
			return err
		}
		reason := "range chosen"
		if it.Export {
			reason = "export requested"
		}
		if err := s.start(ctx, symbol, window, it.Export, reason); err != nil {
			return err
		}
		s.symbol = symbol
		return nil

	case Drag:
		if s.symbol == "" {
			return errNoSymbol
		}
		interval := s.cfg.DefaultInterval
		if s.episode != nil {
			interval = s.episode.window.Interval()
		}
		window, err := it.Bounds.Window(interval)
		if err != nil {
			return err
		}
		return s.start(ctx, s.symbol, window, false, "chart dragged")

	case Reload:
		if s.episode == nil {
			return &domain.ValidationError{Field: "window", Reason: "nothing has been loaded yet"}
		}
		return s.start(ctx, s.episode.symbol, s.episode.window, s.episode.export, "reload")

	default:
		return &domain.ValidationError{Field: "intent", Reason: fmt.Sprintf("unsupported intent %T", intent)}
	}
}

var errNoSymbol = &domain.ValidationError{Field: "symbol", Reason: "no symbol selected"}

// start replaces the active episode with a fresh one for window.
func (s *Session) start(ctx context.Context, symbol string, window domain.TimeWindow, export bool, reason string) error {
	plan, err := loader.NewPlan(window, s.cfg.PageSize)
	if err != nil {
		return err
	}

	s.abandon(ctx, reason)

	epCtx, cancel := context.WithCancel(ctx)
	ep := &episode{
		id:     uuid.New(),
		symbol: symbol,
		window: window,
		state:  loader.NewState(plan),
		export: export,
		ctx:    epCtx,
		cancel: cancel,
	}
	s.episode = ep

	s.logger.Info(ctx, "Episode started", map[string]interface{}{
		"episode":   ep.id.String(),
		"symbol":    symbol,
		"window":    window.String(),
		"pageCount": plan.PageCount(),
		"export":    export,
		"reason":    reason,
	})
	s.publishProgress(ctx, ep)
	s.advance(ctx, ep)
	return nil
}

// abandon cancels the active episode's in-flight fetch. Its result, if it
// still arrives, is dropped by apply.
func (s *Session) abandon(ctx context.Context, reason string) {
	ep := s.episode
	if ep == nil {
		return
	}
	if ep.state.Status() == loader.StatusPending {
		s.logger.Info(ctx, "Abandoning pending episode", map[string]interface{}{
			"episode":  ep.id.String(),
			"symbol":   ep.symbol,
			"progress": ep.state.Progress(),
			"reason":   reason,
		})
	}
	ep.cancel()
}

// advance issues the next page request or finishes the episode.
func (s *Session) advance(ctx context.Context, ep *episode) {
	req, ok := ep.state.NextRequest()
	if !ok {
		s.finish(ctx, ep)
		return
	}

	page := ep.state.PagesDone()
	s.logger.Debug(ctx, "Requesting page", map[string]interface{}{
		"episode": ep.id.String(),
		"page":    page,
		"from":    req.From.Format(time.RFC3339),
		"limit":   req.Limit,
	})
	go s.fetch(ep.ctx, ep.id, ep.symbol, ep.window.Interval(), page, req)
}

func (s *Session) fetch(ctx context.Context, id uuid.UUID, symbol string, interval domain.Interval, page int, req loader.PageRequest) {
	klines, err := s.fetcher.FetchKlines(ctx, symbol, interval, req.From, req.Limit)
	res := pageResult{episode: id, page: page, from: req.From, klines: klines, err: err}
	select {
	case s.results <- res:
	case <-s.done:
	}
}

// apply folds a page result into its episode. Results from any episode but
// the active one are discarded.
func (s *Session) apply(ctx context.Context, res pageResult) {
	ep := s.episode
	if ep == nil || ep.id != res.episode || ep.state.Status() != loader.StatusPending {
		s.logger.Debug(ctx, "Dropping stale page result", map[string]interface{}{
			"episode": res.episode.String(),
			"page":    res.page,
		})
		return
	}

	if res.err != nil {
		fetchErr := &domain.FetchError{
			Episode: ep.id.String(),
			Symbol:  ep.symbol,
			Page:    res.page,
			From:    res.from,
			Err:     res.err,
		}
		ep.state.RecordFailure(fetchErr)
		ep.cancel()
		s.logger.Error(ctx, res.err, "Page fetch failed, episode halted", map[string]interface{}{
			"episode": ep.id.String(),
			"symbol":  ep.symbol,
			"page":    res.page,
			"loaded":  ep.state.Len(),
		})
		s.publishProgress(ctx, ep)
		s.listener.OnError(ctx, fetchErr)
		return
	}

	ep.state.RecordSuccess(res.klines)
	s.logger.Debug(ctx, "Page applied", map[string]interface{}{
		"episode":  ep.id.String(),
		"page":     res.page,
		"received": len(res.klines),
		"progress": ep.state.Progress(),
	})
	s.publishProgress(ctx, ep)
	s.advance(ctx, ep)
}

func (s *Session) finish(ctx context.Context, ep *episode) {
	ep.cancel()

	ds := chart.NewDataset(ep.symbol, ep.window, ep.state.Klines())
	s.logger.Info(ctx, "Episode complete", map[string]interface{}{
		"episode":   ep.id.String(),
		"symbol":    ep.symbol,
		"klines":    len(ds.Klines),
		"gaps":      ds.Gaps,
		"maxPrice":  ds.Summary.MaxPrice,
		"maxVolume": ds.Summary.MaxVolume,
	})
	s.listener.OnComplete(ctx, ds)

	if !ep.export {
		return
	}
	if s.exporter == nil {
		s.logger.Warn(ctx, "Export requested but no exporter is configured", map[string]interface{}{"episode": ep.id.String()})
		return
	}
	if err := s.exporter.Export(ctx, ds); err != nil {
		s.logger.Error(ctx, err, "Dataset export failed", map[string]interface{}{"episode": ep.id.String(), "symbol": ep.symbol})
		return
	}
	s.logger.Info(ctx, "Dataset exported", map[string]interface{}{"episode": ep.id.String(), "symbol": ep.symbol, "klines": len(ds.Klines)})
}

func (s *Session) publishProgress(ctx context.Context, ep *episode) {
	plan := ep.state.Plan()
	s.listener.OnProgress(ctx, domain.Progress{
		Episode:   ep.id.String(),
		Symbol:    ep.symbol,
		Window:    ep.window,
		Fraction:  ep.state.Progress(),
		PagesDone: ep.state.PagesDone(),
		PageCount: plan.PageCount(),
		Failed:    ep.state.HasError(),
	})
}
