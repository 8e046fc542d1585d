package antispam

import (
	"time"

	"voralith-bot/internal/config"
	"voralith-bot/internal/modules/tickets"
	"voralith-bot/internal/utils"
)

type Verdict int

const (
	Allowed Verdict = iota
	Violation
)

type Action int

const (
	ActionWarn Action = iota + 1
	ActionTimeout
)

// Message is the part of an inbound chat message the rate check needs.
type Message struct {
	UserID      string
	ChannelName string
	IsBot       bool
	IsAdmin     bool
	At          time.Time
}

// Decision is the consequence of one violation. Warnings is the counter value
// that produced it; for a timeout the counter has already been reset.
type Decision struct {
	Action    Action
	Warnings  int
	Remaining int
	Timeout   time.Duration
}

// Module tracks per-user message rates and warning counters. It is not safe
// for concurrent use; the dispatch loop owns it.
type Module struct {
	windows  map[string]*utils.SlidingWindow
	warnings map[string]int
	config   config.AntiSpamConfig
}

func New(cfg config.AntiSpamConfig) *Module {
	return &Module{
		windows:  make(map[string]*utils.SlidingWindow),
		warnings: make(map[string]int),
		config:   cfg,
	}
}

func Exempt(msg Message) bool {
	return msg.IsBot || msg.IsAdmin || tickets.IsSupportChannel(msg.ChannelName)
}

func (m *Module) Classify(msg Message) Verdict {
	if Exempt(msg) {
		return Allowed
	}
	count := m.getWindow(msg.UserID).Add(msg.At)
	if count >= m.config.MessageLimit {
		return Violation
	}
	return Allowed
}

func (m *Module) HandleViolation(userID string) Decision {
	m.warnings[userID]++
	count := m.warnings[userID]

	if count >= m.config.WarningThreshold {
		m.warnings[userID] = 0
		if window := m.windows[userID]; window != nil {
			window.Reset()
		}
		return Decision{Action: ActionTimeout, Warnings: count, Timeout: m.config.Timeout()}
	}
	return Decision{Action: ActionWarn, Warnings: count, Remaining: m.config.WarningThreshold - count}
}

func (m *Module) Warnings(userID string) int {
	return m.warnings[userID]
}

// Prune drops idle users that have no recent messages and no pending warnings.
func (m *Module) Prune(now time.Time) int {
	removed := 0
	for userID, window := range m.windows {
		if window.Count(now) == 0 && m.warnings[userID] == 0 {
			delete(m.windows, userID)
			delete(m.warnings, userID)
			removed++
		}
	}
	return removed
}

// Limits renders the active thresholds for warning notices.
func (m *Module) Limits() (messages int, window time.Duration) {
	return m.config.MessageLimit, m.config.Window()
}

func (m *Module) getWindow(userID string) *utils.SlidingWindow {
	window := m.windows[userID]
	if window == nil {
		window = utils.NewSlidingWindow(m.config.Window())
		m.windows[userID] = window
	}
	return window
}
