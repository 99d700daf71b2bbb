// Package monitor drives the monitoring session: it pulls one tick per cycle,
// runs the analysis pipeline, fans alerts out to sinks and keeps the display
// record the presentation layer reads.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rewired-gh/tickwatch/internal/analysis"
	"github.com/rewired-gh/tickwatch/internal/logger"
	"github.com/rewired-gh/tickwatch/internal/metrics"
	"github.com/rewired-gh/tickwatch/internal/models"
)

// ErrFetch reports a cycle that produced no usable tick. The cycle is skipped
// and the previous state is kept.
var ErrFetch = errors.New("tick fetch failed")

type TickSource interface {
	Next(ctx context.Context) (models.Tick, error)
}

type AlertSink interface {
	Name() string
	Deliver(ctx context.Context, alert models.Alert) error
}

type CheckpointStore interface {
	SaveCheckpoint(cp models.Checkpoint) error
	// LoadCheckpoint returns nil when nothing was saved for asset.
	LoadCheckpoint(asset string) (*models.Checkpoint, error)
}

// AlertJournal is implemented by stores that also keep emitted alerts; it
// seeds the history after a restart.
type AlertJournal interface {
	RecentAlerts(asset string, limit int) ([]models.Alert, error)
}

// StatusNotifier is told about the first failure of a run of failed cycles and
// about the recovery that ends it.
type StatusNotifier interface {
	SendError(err error) error
	SendRecovery(failures int) error
}

type Config struct {
	Asset              string
	Interval           time.Duration
	Autostart          bool
	HistorySize        int
	ChartPoints        int
	CheckpointInterval int
	Analysis           analysis.Config
}

func DefaultConfig() Config {
	return Config{
		Asset:              "BTC-USD",
		Interval:           5 * time.Second,
		Autostart:          true,
		HistorySize:        20,
		ChartPoints:        50,
		CheckpointInterval: 12,
		Analysis:           analysis.DefaultConfig(),
	}
}

// Snapshot is the display record published after every cycle.
type Snapshot struct {
	Asset               string               `json:"asset"`
	Price               float64              `json:"price"`
	Status              string               `json:"status"`
	Running             bool                 `json:"running"`
	Alerts              []models.Alert       `json:"alerts"`
	Chart               []models.PricePoint  `json:"chart"`
	State               models.AnalysisState `json:"state"`
	Cycles              int                  `json:"cycles"`
	Failures            int                  `json:"failures"`
	ConsecutiveFailures int                  `json:"consecutive_failures"`
	LastError           string               `json:"last_error,omitempty"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

type Option func(*Monitor)

func WithStore(s CheckpointStore) Option {
	return func(m *Monitor) { m.store = s }
}

func WithSinks(sinks ...AlertSink) Option {
	return func(m *Monitor) { m.sinks = append(m.sinks, sinks...) }
}

// WithJournal seeds the alert history from j. Without it a store that also
// implements AlertJournal is used.
func WithJournal(j AlertJournal) Option {
	return func(m *Monitor) { m.journal = j }
}

func WithNotifier(n StatusNotifier) Option {
	return func(m *Monitor) { m.notifier = n }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

type Monitor struct {
	config   Config
	source   TickSource
	store    CheckpointStore
	journal  AlertJournal
	sinks    []AlertSink
	notifier StatusNotifier
	metrics  *metrics.Metrics

	// cycleMu serializes cycles. The analyzer and the checkpoint counter are
	// only touched with it held.
	cycleMu         sync.Mutex
	analyzer        *analysis.Analyzer
	sinceCheckpoint int

	mu                  sync.RWMutex
	running             bool
	price               float64
	state               models.AnalysisState
	history             []models.Alert
	chart               []models.PricePoint
	cycles              int
	failures            int
	consecutiveFailures int
	lastErr             string
	updatedAt           time.Time
}

// New builds a monitor and, when a store is configured, resumes from its
// latest checkpoint.
func New(source TickSource, config Config, opts ...Option) *Monitor {
	if config.HistorySize <= 0 {
		config.HistorySize = 20
	}
	if config.ChartPoints <= 0 {
		config.ChartPoints = 50
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Second
	}

	m := &Monitor{
		config:   config,
		source:   source,
		analyzer: analysis.NewAnalyzer(config.Asset, config.Analysis),
		running:  config.Autostart,
		state:    models.NewAnalysisState(),
		history:  []models.Alert{},
		chart:    []models.PricePoint{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.metrics.SetRunning(m.running)

	if m.store != nil {
		m.restore()
	}
	if m.journal == nil {
		m.journal, _ = m.store.(AlertJournal)
	}
	if m.journal != nil {
		m.seedHistory()
	}
	return m
}

func (m *Monitor) restore() {
	cp, err := m.store.LoadCheckpoint(m.config.Asset)
	if err != nil {
		logger.Warn("Failed to load checkpoint for %s: %v", m.config.Asset, err)
		return
	}
	if cp == nil {
		logger.Debug("No checkpoint stored for %s, starting fresh", m.config.Asset)
		return
	}
	if err := m.analyzer.Restore(cp.State, cp.Window); err != nil {
		logger.Warn("Discarding checkpoint for %s: %v", m.config.Asset, err)
		return
	}

	window := m.analyzer.Window()
	m.state = m.analyzer.State()
	for _, t := range lastN(window, m.config.ChartPoints) {
		m.chart = append(m.chart, models.PricePoint{Timestamp: t.Timestamp, Price: t.Price})
	}
	if len(window) > 0 {
		m.price = window[len(window)-1].Price
	}

	logger.Info("Restored checkpoint for %s saved at %s (%d ticks, regime %s, bias %s)",
		m.config.Asset, cp.SavedAt.Format(time.RFC3339), len(window), m.state.Regime, m.state.Bias)
}

func (m *Monitor) seedHistory() {
	alerts, err := m.journal.RecentAlerts(m.config.Asset, m.config.HistorySize)
	if err != nil {
		logger.Warn("Failed to load alert history: %v", err)
		return
	}
	if len(alerts) > m.config.HistorySize {
		alerts = alerts[:m.config.HistorySize]
	}
	m.history = alerts
}

// Run executes cycles on a fixed interval until ctx is cancelled. Cycles run
// on the calling goroutine and never overlap; a tick that arrives while a
// cycle is still running is dropped by the ticker.
func (m *Monitor) Run(ctx context.Context) error {
	logger.Info("Starting monitoring session for %s (interval: %v, running: %v)",
		m.config.Asset, m.config.Interval, m.Running())

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	if m.Running() {
		logger.Debug("Running initial monitoring cycle")
		_ = m.RunCycle(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Monitoring session stopped")
			return nil
		case <-ticker.C:
			if !m.Running() {
				continue
			}
			_ = m.RunCycle(ctx)
		}
	}
}

// Start resumes processing. No state is reset.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.metrics.SetRunning(true)
	logger.Info("Monitoring session started")
}

// Stop pauses processing before the next scheduled cycle.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.metrics.SetRunning(false)
	logger.Info("Monitoring session paused")
}

func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// RunCycle fetches one tick and runs the pipeline on it. A failed fetch or a
// rejected tick returns an error wrapping ErrFetch and leaves the state of the
// last good cycle in place.
func (m *Monitor) RunCycle(ctx context.Context) error {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	start := time.Now()
	err := m.cycle(ctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	m.handleCycleResult(err)

	result := "ok"
	switch {
	case errors.Is(err, models.ErrInvalidTick):
		result = "invalid_tick"
	case err != nil:
		result = "fetch_error"
	}
	m.metrics.ObserveCycle(result, time.Since(start))
	return err
}

func (m *Monitor) cycle(ctx context.Context) error {
	tick, err := m.source.Next(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	alert, err := m.analyzer.Process(tick)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	state := m.analyzer.State()

	m.mu.Lock()
	m.price = tick.Price
	m.state = state
	m.chart = append(m.chart, models.PricePoint{Timestamp: tick.Timestamp, Price: tick.Price})
	if len(m.chart) > m.config.ChartPoints {
		m.chart = append([]models.PricePoint(nil), m.chart[len(m.chart)-m.config.ChartPoints:]...)
	}
	if alert != nil {
		m.history = append([]models.Alert{*alert}, m.history...)
		if len(m.history) > m.config.HistorySize {
			m.history = m.history[:m.config.HistorySize]
		}
	}
	m.cycles++
	m.updatedAt = tick.Timestamp
	m.mu.Unlock()

	m.metrics.ObserveState(tick.Price, state)
	logger.Debug("Cycle %s price=%.4f regime=%s bias=%s structure=%s atr=%.4f",
		tick.Timestamp.Format("15:04:05"), tick.Price, state.Regime, state.Bias, state.LastStructure, state.ATR)

	if alert != nil {
		logger.Info("Alert %s: %s at %.4f (trigger %.4f, invalidation %.4f, p=%d%%)",
			alert.Rule, alert.Event, alert.Price, alert.TriggerLevel, alert.InvalidationLevel, alert.Probability)
		m.metrics.ObserveAlert(alert.Rule)
		m.deliver(ctx, *alert)
	}

	m.sinceCheckpoint++
	if m.config.CheckpointInterval > 0 && m.sinceCheckpoint >= m.config.CheckpointInterval {
		m.checkpoint()
	}
	return nil
}

func (m *Monitor) deliver(ctx context.Context, alert models.Alert) {
	for _, sink := range m.sinks {
		if err := sink.Deliver(ctx, alert); err != nil {
			logger.Warn("Failed to deliver alert %s to %s: %v", alert.ID, sink.Name(), err)
			m.metrics.SinkError(sink.Name())
			continue
		}
		logger.Debug("Delivered alert %s to %s", alert.ID, sink.Name())
	}
}

// handleCycleResult tracks runs of failed cycles. Only the first failure of a
// run is reported; the next success reports the recovery with the run length.
func (m *Monitor) handleCycleResult(err error) {
	m.mu.Lock()
	if err != nil {
		m.failures++
		m.consecutiveFailures++
		m.lastErr = strings.TrimPrefix(err.Error(), ErrFetch.Error()+": ")
	}
	failures := m.consecutiveFailures
	if err == nil {
		m.consecutiveFailures = 0
		m.lastErr = ""
	}
	m.mu.Unlock()

	if err != nil {
		logger.Error("Monitoring cycle failed: %v", err)
		if failures == 1 && m.notifier != nil {
			if sendErr := m.notifier.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return
	}
	if failures > 0 {
		logger.Info("Monitoring recovered after %d failed cycles", failures)
		if m.notifier != nil {
			if sendErr := m.notifier.SendRecovery(failures); sendErr != nil {
				logger.Warn("Failed to send recovery notification: %v", sendErr)
			}
		}
	}
}

func (m *Monitor) checkpoint() {
	m.sinceCheckpoint = 0
	if m.store == nil {
		return
	}
	cp := models.Checkpoint{
		Asset:   m.config.Asset,
		State:   m.analyzer.State(),
		Window:  m.analyzer.Window(),
		SavedAt: time.Now(),
	}
	if err := m.store.SaveCheckpoint(cp); err != nil {
		logger.Warn("Failed to checkpoint %s: %v", m.config.Asset, err)
		return
	}
	logger.Debug("Checkpointed %s (%d ticks)", m.config.Asset, len(cp.Window))
}

// Shutdown waits for an in-flight cycle and writes a final checkpoint.
func (m *Monitor) Shutdown() {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()
	if m.store == nil {
		return
	}
	logger.Info("Checkpointing %s before shutdown", m.config.Asset)
	m.checkpoint()
}

// Snapshot returns a copy of the display record.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Asset:               m.config.Asset,
		Price:               m.price,
		Status:              m.statusLocked(),
		Running:             m.running,
		Alerts:              append([]models.Alert{}, m.history...),
		Chart:               append([]models.PricePoint{}, m.chart...),
		State:               m.state.Clone(),
		Cycles:              m.cycles,
		Failures:            m.failures,
		ConsecutiveFailures: m.consecutiveFailures,
		LastError:           m.lastErr,
		UpdatedAt:           m.updatedAt,
	}
}

func (m *Monitor) statusLocked() string {
	switch {
	case !m.running:
		return "Paused"
	case m.lastErr != "":
		return "Feed error: " + m.lastErr
	default:
		return FormatStatus(m.state)
	}
}

// FormatStatus renders the one-line status shown while monitoring.
func FormatStatus(state models.AnalysisState) string {
	return fmt.Sprintf("Monitoring • %s • %s bias", strings.ToUpper(string(state.Regime)), state.Bias)
}

func lastN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
