// Package context keeps a task's conversation inside the model's context
// window. It owns the task's edit log and decides each turn whether to
// deduplicate file contents or hide part of the history.
package context

import (
	"math"

	"github.com/rs/zerolog"

	"contextkeeper/internal/compaction"
	"contextkeeper/internal/editlog"
	"contextkeeper/internal/message"
	"contextkeeper/internal/storage"
	"contextkeeper/pkg/logger"
)

// ViewRequest is the input of one GetEffectiveView pass.
type ViewRequest struct {
	Messages []message.Message
	Markers  []message.RequestMarker
	// DeletedRange is the range returned by the previous pass, nil if none.
	DeletedRange *compaction.DeletedRange
	// PreviousRequestIndex points at the marker of the last completed request.
	PreviousRequestIndex int
	Model                compaction.ModelInfo
	// NativeCondense disables compaction when the provider condenses context itself.
	NativeCondense bool
}

// ViewResult is the conversation to send on the next request.
type ViewResult struct {
	DeletedRange *compaction.DeletedRange `json:"deleted_range,omitempty"`
	RangeUpdated bool                     `json:"range_updated"`
	Messages     []message.Message        `json:"messages"`
}

// Telemetry reports context window occupancy.
type Telemetry struct {
	TokensUsed       int64 `json:"tokens_used"`
	MaxContextWindow int   `json:"max_context_window"`
}

// Manager runs compaction for one task.
//
// A Manager is not safe for concurrent use; callers must not run two
// passes for the same task at once.
type Manager struct {
	store     storage.HistoryStore
	taskKey   string
	cfg       compaction.Config
	optimizer *compaction.Optimizer
	history   *editlog.Log
	logger    zerolog.Logger
}

// NewManager creates a Manager for the task identified by taskKey in store.
// Zero fields of cfg take their defaults. The edit log is loaded on first use.
func NewManager(store storage.HistoryStore, taskKey string, cfg compaction.Config) *Manager {
	cfg = cfg.WithDefaults()
	return &Manager{
		store:     store,
		taskKey:   taskKey,
		cfg:       cfg,
		optimizer: compaction.NewOptimizer(cfg),
		logger:    logger.Component("context").With().Str("task", taskKey).Logger(),
	}
}

// Load reads the edit log from the store. On failure the Manager continues
// with an empty log and the error is returned for reporting only.
func (m *Manager) Load() error {
	l, err := m.store.Load(m.taskKey)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to load context history, starting empty")
		m.history = editlog.New()
		return err
	}
	m.history = l
	m.logger.Debug().Int("cells", l.Len()).Msg("context history loaded")
	return nil
}

// History returns the task's edit log.
func (m *Manager) History() *editlog.Log {
	m.ensureLoaded()
	return m.history
}

func (m *Manager) ensureLoaded() {
	if m.history == nil {
		_ = m.Load()
	}
}

func (m *Manager) persist() {
	if err := m.store.Save(m.taskKey, m.history); err != nil {
		m.logger.Warn().Err(err).Msg("failed to save context history")
	}
}

// usageAt returns the usage and timestamp of markers[i]. ok is false when
// the index is out of range or the marker carries no usable record.
func (m *Manager) usageAt(markers []message.RequestMarker, i int) (compaction.Usage, int64, bool) {
	if i < 0 || i >= len(markers) || markers[i].Text == "" {
		return compaction.Usage{}, 0, false
	}
	usage, err := compaction.ParseUsage(markers[i].Text)
	if err != nil {
		m.logger.Warn().Err(err).Int("marker", i).Msg("ignoring request marker")
		return compaction.Usage{}, 0, false
	}
	return usage, markers[i].Timestamp, true
}

// ShouldCompact reports whether the previous request's usage reached the
// compaction threshold. thresholdPercent > 0 lowers the threshold to that
// share of the context window.
func (m *Manager) ShouldCompact(markers []message.RequestMarker, model compaction.ModelInfo, previousRequestIndex int, thresholdPercent float64) bool {
	usage, _, ok := m.usageAt(markers, previousRequestIndex)
	if !ok {
		return false
	}

	window := compaction.ContextWindow(model, m.cfg.DefaultContextWindow)
	threshold := window.MaxAllowedSize
	if thresholdPercent > 0 {
		threshold = min(int(math.Floor(float64(window.ContextWindow)*thresholdPercent)), window.MaxAllowedSize)
	}
	return usage.Total() >= int64(threshold)
}

// GetEffectiveView returns the conversation to send next. When the previous
// request came close to the window limit it first collapses duplicate file
// contents, and hides part of the history if that did not save enough.
func (m *Manager) GetEffectiveView(req ViewRequest) ViewResult {
	m.ensureLoaded()
	result := ViewResult{DeletedRange: req.DeletedRange}

	if !req.NativeCondense {
		if usage, timestamp, ok := m.usageAt(req.Markers, req.PreviousRequestIndex); ok {
			window := compaction.ContextWindow(req.Model, m.cfg.DefaultContextWindow)
			if used := usage.Total(); used >= int64(window.MaxAllowedSize) {
				strategy := compaction.StrategyHalf
				if used/2 > int64(window.MaxAllowedSize) {
					strategy = compaction.StrategyQuarter
				}
				m.logger.Info().
					Int64("usage", used).
					Int("max_allowed", window.MaxAllowedSize).
					Str("strategy", string(strategy)).
					Msg("context window limit reached")
				m.compact(req, timestamp, strategy, &result)
			}
		}
	}

	result.Messages = compaction.Render(req.Messages, m.history, result.DeletedRange)
	return result
}

func (m *Manager) compact(req ViewRequest, timestamp int64, strategy compaction.Strategy, result *ViewResult) {
	start := compaction.RangeStart
	if req.DeletedRange != nil {
		start = max(req.DeletedRange.End+1, compaction.RangeStart)
	}

	changed := false
	opt, err := m.optimizer.Optimize(req.Messages, m.history, start, timestamp)
	if err != nil {
		m.logger.Warn().Err(err).Msg("duplicate file optimization incomplete")
	}
	if opt.Changed {
		changed = true
		impact := compaction.CalculateImpact(req.Messages, m.history, req.DeletedRange, opt.Touched)
		m.logger.Debug().
			Float64("impact", impact).
			Int("touched", len(opt.Touched)).
			Msg("duplicate file contents replaced")
		if impact >= m.cfg.ImpactThreshold {
			m.persist()
			return
		}
	}

	if m.insertOnce(req.Messages, 1, compaction.TruncationNotice, timestamp) {
		changed = true
	}
	if first, ok := firstMessageText(req.Messages); ok {
		processed := compaction.ProcessFirstMessage(first, m.cfg.FirstMessageMaxChars)
		if m.insertOnce(req.Messages, 0, processed, timestamp) {
			changed = true
		}
	}

	r := compaction.CalculateRange(req.Messages, req.DeletedRange, strategy)
	result.DeletedRange = &r
	result.RangeUpdated = true
	m.logger.Info().Stringer("deleted_range", r).Msg("conversation history truncated")

	if changed {
		m.persist()
	}
}

// insertOnce records text as block 0 of message msg unless the message
// already has an entry.
func (m *Manager) insertOnce(messages []message.Message, msg int, text string, timestamp int64) bool {
	if msg >= len(messages) || m.history.HasMessage(msg) {
		return false
	}
	if err := m.history.Append(editlog.Key{Message: msg, Block: 0}, editlog.Update{Timestamp: timestamp, Text: text}); err != nil {
		m.logger.Warn().Err(err).Int("message", msg).Msg("failed to record truncation update")
		return false
	}
	return true
}

func firstMessageText(messages []message.Message) (string, bool) {
	if len(messages) == 0 {
		return "", false
	}
	return messages[0].Text(0)
}

// GetTelemetry reports the usage of the latest completed request at or
// before triggerIndex; -1 searches from the last marker. It returns nil
// when no such request exists.
func (m *Manager) GetTelemetry(markers []message.RequestMarker, model compaction.ModelInfo, triggerIndex int) *Telemetry {
	end := triggerIndex
	if end < 0 || end >= len(markers) {
		end = len(markers) - 1
	}

	for i := end; i >= 0; i-- {
		if markers[i].Kind != message.MarkerRequestStarted || markers[i].Text == "" {
			continue
		}
		usage, err := compaction.ParseUsage(markers[i].Text)
		if err != nil {
			m.logger.Debug().Err(err).Int("marker", i).Msg("skipping request marker")
			continue
		}
		if total := usage.Total(); total > 0 {
			window := compaction.ContextWindow(model, m.cfg.DefaultContextWindow)
			return &Telemetry{TokensUsed: total, MaxContextWindow: window.ContextWindow}
		}
	}
	return nil
}

// Rollback discards every update newer than timestamp and persists the
// log. It reports whether anything was discarded.
func (m *Manager) Rollback(timestamp int64) bool {
	m.ensureLoaded()
	changed := compaction.Rollback(m.history, timestamp)
	m.logger.Info().Int64("timestamp", timestamp).Bool("changed", changed).Msg("context history rolled back")
	m.persist()
	return changed
}
