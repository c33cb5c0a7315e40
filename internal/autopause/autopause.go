// Package autopause implements the Auto-Pause circuit breaker: trading halts
// on consecutive execution failures, hourly failure bursts, equity
// drawdown, or wallet balance running dry, and resumes on a timer, a
// manual flag file, or an explicit manual call. Grounded on
// original_source/backend/src/trading/auto_pause.py.
package autopause

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/raysnipe/sniper/internal/chain"
)

// Config mirrors tuner.Config's pattern of a plain value-type config struct
// fed by internal/config.
type Config struct {
	MaxConsecutiveFailures      int
	MaxFailuresPerHour          int
	MinSOLBalanceLamports       uint64
	CriticalSOLBalanceLamports  uint64
	FailurePauseDuration        time.Duration
	BalanceCheckInterval        time.Duration
	AutoResumeAfter             time.Duration
	RequireManualResumeOnCritical bool
	DrawdownPctTrip             float64
	FlagDir                     string
}

// DefaultConfig mirrors auto_pause.py's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxConsecutiveFailures:        3,
		MaxFailuresPerHour:            10,
		MinSOLBalanceLamports:         50_000_000,
		CriticalSOLBalanceLamports:    10_000_000,
		FailurePauseDuration:          300 * time.Second,
		BalanceCheckInterval:          60 * time.Second,
		AutoResumeAfter:               1800 * time.Second,
		RequireManualResumeOnCritical: true,
		DrawdownPctTrip:               20,
		FlagDir:                       "./data/flags",
	}
}

// State is the manager's point-in-time pause state.
type State struct {
	IsPaused             bool
	PauseReason          string
	PauseStart           time.Time
	ResumeAt             time.Time
	RequiresManualResume bool
	ConsecutiveFailures  int
	FailuresThisHour     int
	HourStart            time.Time
	LastBalanceCheck     time.Time
	LastKnownBalance     uint64
}

// Manager is the mutex-protected Auto-Pause state object, following the
// teacher's getter/setter state-object idiom (internal/chain.BalanceTracker,
// internal/tuner.Tuner).
type Manager struct {
	rpc          *chain.RPCClient
	walletPubkey string
	cfg          Config

	onPause  func(reason, details string)
	onResume func(trigger string)

	mu    sync.Mutex
	state State

	watcher *fsnotify.Watcher
}

// New constructs an Auto-Pause Manager. onPause/onResume are optional
// hooks (e.g. to flatten open positions or notify an operator).
func New(rpc *chain.RPCClient, walletPubkey string, cfg Config, onPause func(reason, details string), onResume func(trigger string)) *Manager {
	return &Manager{
		rpc:          rpc,
		walletPubkey: walletPubkey,
		cfg:          cfg,
		onPause:      onPause,
		onResume:     onResume,
		state:        State{HourStart: time.Now()},
	}
}

// IsTradingAllowed reports whether new entries may be opened, auto-resuming
// a timed pause if its window has elapsed.
func (m *Manager) IsTradingAllowed() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.IsPaused {
		return true, ""
	}
	now := time.Now()
	if !m.state.ResumeAt.IsZero() && now.After(m.state.ResumeAt) && !m.state.RequiresManualResume {
		m.resumeLocked("auto_resume_timeout")
		return true, ""
	}
	return false, m.state.PauseReason
}

// RecordSuccess clears the consecutive-failure streak.
func (m *Manager) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ConsecutiveFailures = 0
	if m.state.IsPaused && m.state.PauseReason == "consecutive_failures" {
		log.Info().Msg("trade succeeded while paused, consider manual resume")
	}
}

// RecordFailure feeds an execution failure into the streak/hourly counters
// and trips a pause if either threshold is breached. Returns true if a
// pause was triggered.
func (m *Manager) RecordFailure(errorType string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.state.HourStart) > time.Hour {
		m.state.FailuresThisHour = 0
		m.state.HourStart = now
	}

	m.state.ConsecutiveFailures++
	m.state.FailuresThisHour++

	if m.state.ConsecutiveFailures >= m.cfg.MaxConsecutiveFailures {
		m.pauseLocked("consecutive_failures", m.cfg.FailurePauseDuration, false)
		return true
	}
	if m.state.FailuresThisHour >= m.cfg.MaxFailuresPerHour {
		m.pauseLocked("hourly_failure_limit", 2*m.cfg.FailurePauseDuration, false)
		return true
	}
	return false
}

// CheckDrawdown trips a manual-resume-required pause when realized
// drawdown from a high-water mark exceeds the configured trip percentage.
// Supplements auto_pause.py, which only watches failures and balance, per
// the equity-drawdown trip SPEC_FULL.md calls for.
func (m *Manager) CheckDrawdown(drawdownPct float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if drawdownPct < m.cfg.DrawdownPctTrip {
		return false
	}
	m.pauseLocked("drawdown_limit", 0, true)
	return true
}

// CheckBalance polls wallet SOL balance at most once per
// BalanceCheckInterval, pausing on low/critical balance.
func (m *Manager) CheckBalance(ctx context.Context) (uint64, bool, error) {
	m.mu.Lock()
	now := time.Now()
	if now.Sub(m.state.LastBalanceCheck) < m.cfg.BalanceCheckInterval {
		bal := m.state.LastKnownBalance
		m.mu.Unlock()
		return bal, false, nil
	}
	m.mu.Unlock()

	balance, err := m.rpc.GetBalance(ctx, m.walletPubkey)
	if err != nil {
		log.Error().Err(err).Msg("auto-pause balance check failed")
		m.mu.Lock()
		bal := m.state.LastKnownBalance
		m.mu.Unlock()
		return bal, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastKnownBalance = balance
	m.state.LastBalanceCheck = now

	if balance < m.cfg.CriticalSOLBalanceLamports {
		m.pauseLocked("critical_balance", 0, true)
		return balance, true, nil
	}
	if balance < m.cfg.MinSOLBalanceLamports {
		m.pauseLocked("low_balance", m.cfg.AutoResumeAfter, false)
		return balance, false, nil
	}
	return balance, false, nil
}

// ManualPause pauses trading for a fixed duration with an operator-supplied
// reason.
func (m *Manager) ManualPause(reason string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked(reason, duration, false)
}

// ManualResume clears an active pause. Returns false if trading was not
// paused.
func (m *Manager) ManualResume() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.IsPaused {
		return false
	}
	m.resumeLocked("manual")
	return true
}

func (m *Manager) pauseLocked(reason string, duration time.Duration, requireManual bool) {
	now := time.Now()
	m.state.IsPaused = true
	m.state.PauseReason = reason
	m.state.PauseStart = now
	if duration > 0 {
		m.state.ResumeAt = now.Add(duration)
	} else {
		m.state.ResumeAt = time.Time{}
	}
	m.state.RequiresManualResume = requireManual || m.cfg.RequireManualResumeOnCritical && duration == 0

	log.Warn().Str("reason", reason).Bool("manual_resume_required", m.state.RequiresManualResume).Msg("trading paused")
	if m.onPause != nil {
		m.onPause(reason, "")
	}
}

func (m *Manager) resumeLocked(trigger string) {
	m.state.IsPaused = false
	m.state.PauseReason = ""
	m.state.PauseStart = time.Time{}
	m.state.ResumeAt = time.Time{}
	m.state.RequiresManualResume = false
	m.state.ConsecutiveFailures = 0

	log.Info().Str("trigger", trigger).Msg("trading resumed")
	if m.onResume != nil {
		m.onResume(trigger)
	}
}

// Status is a snapshot for the control API and logging.
type Status struct {
	IsPaused             bool
	PauseReason          string
	PauseDuration        time.Duration
	ResumeAt             time.Time
	RequiresManualResume bool
	ConsecutiveFailures  int
	FailuresThisHour     int
	LastKnownBalance     uint64
}

// GetStatus returns the current pause status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dur time.Duration
	if !m.state.PauseStart.IsZero() {
		dur = time.Since(m.state.PauseStart)
	}
	return Status{
		IsPaused:             m.state.IsPaused,
		PauseReason:          m.state.PauseReason,
		PauseDuration:        dur,
		ResumeAt:             m.state.ResumeAt,
		RequiresManualResume: m.state.RequiresManualResume,
		ConsecutiveFailures:  m.state.ConsecutiveFailures,
		FailuresThisHour:     m.state.FailuresThisHour,
		LastKnownBalance:     m.state.LastKnownBalance,
	}
}

// pause.flag, present -> pause with reason "flag_file"; flatten.flag,
// present -> pause with reason "flag_file_flatten" plus the operator's
// intent to liquidate (read via FlattenRequested).
const (
	pauseFlagName    = "pause.flag"
	flattenFlagName  = "flatten.flag"
)

// WatchFlags fsnotify-watches cfg.FlagDir, mirroring internal/config's own
// viper.OnConfigChange idiom, so an operator can pause/flatten trading by
// touching a file without restarting the process.
func (m *Manager) WatchFlags(ctx context.Context) error {
	if m.cfg.FlagDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.cfg.FlagDir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(m.cfg.FlagDir); err != nil {
		watcher.Close()
		return err
	}
	m.watcher = watcher

	m.syncFlags()

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Write) != 0 {
					m.syncFlags()
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(werr).Msg("flag directory watch error")
			}
		}
	}()

	return nil
}

func (m *Manager) syncFlags() {
	pausePresent := fileExists(filepath.Join(m.cfg.FlagDir, pauseFlagName))
	flattenPresent := fileExists(filepath.Join(m.cfg.FlagDir, flattenFlagName))

	m.mu.Lock()
	defer m.mu.Unlock()

	if (pausePresent || flattenPresent) && !m.state.IsPaused {
		reason := "flag_file"
		if flattenPresent {
			reason = "flag_file_flatten"
		}
		m.pauseLocked(reason, 0, true)
	} else if !pausePresent && !flattenPresent && m.state.IsPaused && m.state.PauseReason == "flag_file" {
		m.resumeLocked("flag_file_removed")
	}
}

// FlattenRequested reports whether the operator's flatten.flag is present,
// signaling the position manager should liquidate all open positions
// rather than merely stop opening new ones.
func (m *Manager) FlattenRequested() bool {
	return fileExists(filepath.Join(m.cfg.FlagDir, flattenFlagName))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
