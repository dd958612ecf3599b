package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cuemby/feelback/pkg/config"
	"github.com/cuemby/feelback/pkg/device"
	"github.com/cuemby/feelback/pkg/events"
	"github.com/cuemby/feelback/pkg/frustration"
	"github.com/cuemby/feelback/pkg/log"
	"github.com/cuemby/feelback/pkg/metrics"
	"github.com/cuemby/feelback/pkg/queue"
	"github.com/cuemby/feelback/pkg/review"
	"github.com/cuemby/feelback/pkg/storage"
	"github.com/cuemby/feelback/pkg/ticker"
	"github.com/cuemby/feelback/pkg/transport"
	"github.com/cuemby/feelback/pkg/ui"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNotInitialized is returned by every call made before Init
	ErrNotInitialized = errors.New("feelback: SDK not initialized")

	// ErrShutdown is returned by every call made after Shutdown
	ErrShutdown = errors.New("feelback: SDK shut down")
)

// Repeating job names
const (
	jobDecay = "frustration-decay"
	jobFlush = "queue-flush"
)

// Option customises an SDK before Init
type Option func(*SDK)

// WithPresenter attaches the UI host used for review and intervention prompts
func WithPresenter(p ui.Presenter) Option {
	return func(s *SDK) { s.presenter = p }
}

// WithTransport replaces the HTTP transport
func WithTransport(t transport.Transport) Option {
	return func(s *SDK) { s.transport = t }
}

// WithStore supplies the durable store. The SDK does not close it.
func WithStore(store storage.Store) Option {
	return func(s *SDK) { s.store = store }
}

// WithDevice sets the device metadata; DeviceID is resolved from the store
func WithDevice(info device.Info) Option {
	return func(s *SDK) { s.device = info }
}

// WithClock replaces the time source used for timestamps and review cadence
func WithClock(now func() time.Time) Option {
	return func(s *SDK) { s.now = now }
}

// WithLogOutput routes SDK logs to w as JSON
func WithLogOutput(w io.Writer) Option {
	return func(s *SDK) { s.logOutput = w }
}

// SDK is one feelback instance. Create it with New, then call Init once.
// All methods are safe for concurrent use.
type SDK struct {
	// set by options
	presenter ui.Presenter
	transport transport.Transport
	store     storage.Store
	device    device.Info
	now       func() time.Time
	logOutput io.Writer

	mu          sync.RWMutex
	initialized bool
	closed      bool
	ownsStore   bool
	config      config.Config
	sessionID   string
	userID      string
	traits      map[string]any

	engine   *frustration.Engine
	queue    *queue.Queue
	gate     *review.Gate
	repeater *ticker.Repeater
	changes  *events.Broker
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	interventionMu    sync.Mutex
	interventionTimer *time.Timer
	interventionArmed bool
}

// New creates an uninitialized SDK
func New(opts ...Option) *SDK {
	s := &SDK{
		device:  device.Default(),
		now:     time.Now,
		changes: events.NewBroker(),
		logger:  log.WithComponent("sdk"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init wires every component and starts the decay and flush timers. A
// second call logs a warning and returns nil.
func (s *SDK) Init(ctx context.Context, apiKey string, cfg config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		s.logger.Warn().Msg("Init called more than once, ignoring")
		return nil
	}
	if s.closed {
		return ErrShutdown
	}
	if apiKey == "" {
		return errors.New("feelback: api key is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("feelback: invalid config: %w", err)
	}

	log.Init(log.Config{
		Level:      log.LevelFor(cfg.DebugLogging),
		JSONOutput: true,
		Output:     s.logOutput,
	})
	s.logger = log.WithComponent("sdk")
	s.config = cfg

	if s.store == nil {
		store, err := storage.Open(cfg.StorageDriver, cfg.DataDir)
		if err != nil {
			s.logger.Error().Err(err).Str("driver", cfg.StorageDriver).Msg("Failed to open store, using memory")
			metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
			store = storage.NewMemoryStore()
		} else {
			metrics.UpdateComponent(metrics.ComponentStorage, true, "")
		}
		s.store = store
		s.ownsStore = true
	}

	sessions, err := storage.Increment(s.store, storage.KeySessionCount)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to increment session count")
	}

	info, err := device.Resolve(s.store, s.device)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist device id")
	}
	s.device = info
	s.sessionID = uuid.New().String()
	s.logger = log.WithSessionID(s.sessionID).With().Str("component", "sdk").Logger()

	if s.transport == nil {
		s.transport = transport.NewHTTPTransport(cfg.Endpoint, apiKey).
			WithTimeout(cfg.HTTPTimeout()).
			WithCompression(cfg.CompressBatches).
			WithHeader("X-Feelback-Environment", cfg.Environment)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.interventionArmed = true

	s.engine = frustration.NewEngine(frustration.Config{
		RageTapThreshold: cfg.RageTapThreshold,
		RageTapWindow:    cfg.RageTapWindow(),
	})
	s.engine.Subscribe(s.onFrustrationEvent)

	s.queue = queue.New(s.store, s.transport, queue.Config{
		BatchSize: cfg.EventBatchSize,
		MaxSize:   cfg.MaxQueueSize,
	})

	s.gate = review.NewGate(s.store, review.Config{
		MinimumSessions: cfg.ReviewPromptMinimumSessions,
		CooldownDays:    cfg.ReviewPromptCooldownDays,
	}).WithClock(s.now)

	s.repeater = ticker.New()
	if err := s.repeater.Every(jobDecay, frustration.DecayInterval, s.decayTick); err != nil {
		return err
	}
	if err := s.repeater.Every(jobFlush, cfg.FlushInterval(), s.queue.TriggerFlush); err != nil {
		return err
	}
	s.repeater.Start()

	metrics.SetVersion(s.device.SDKVersion)
	s.initialized = true

	s.logger.Info().
		Str("device_id", s.device.DeviceID).
		Int64("session_count", sessions).
		Str("environment", cfg.Environment).
		Int("queued", s.queue.Len()).
		Msg("feelback initialized")

	return nil
}

// ready reports whether the SDK may serve API calls
func (s *SDK) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.closed:
		return ErrShutdown
	case !s.initialized:
		return ErrNotInitialized
	}
	return nil
}

// Flush sends every queued batch now. Delivery failures are logged and the
// events stay queued; only usage errors are returned.
func (s *SDK) Flush(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.queue.Drain(ctx); err != nil {
		s.logger.Warn().Err(err).Int("queued", s.queue.Len()).Msg("Flush incomplete")
	}
	return nil
}

// QueueLen returns the number of events awaiting delivery
func (s *SDK) QueueLen() (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.queue.Len(), nil
}

// SessionID returns the id of the current session
func (s *SDK) SessionID() (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID, nil
}

// SetPresenter attaches or detaches (nil) the UI host
func (s *SDK) SetPresenter(p ui.Presenter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presenter = p
}

func (s *SDK) currentPresenter() ui.Presenter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presenter
}

// Health returns the state of storage and delivery
func (s *SDK) Health() metrics.HealthStatus {
	return metrics.GetHealth()
}

// Shutdown stops timers, cancels a pending intervention and writes the
// final queue snapshot. It does not wait for network calls in progress.
// Calling it more than once, or before Init, is harmless.
func (s *SDK) Shutdown() error {
	s.mu.Lock()
	if !s.initialized || s.closed {
		s.closed = true
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.repeater.Stop()
	s.cancelIntervention()
	s.cancel()
	s.queue.Stop()

	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to close store")
		}
	}

	s.logger.Info().Msg("feelback shut down")
	return nil
}
