package verification

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// NoGuild marks a flow started from a direct message.
const NoGuild = "dm"

var (
	ErrAlreadyVerified = errors.New("user already verified")
	ErrNoPending       = errors.New("no pending verification")
	ErrTokenMismatch   = errors.New("verification state mismatch")
	ErrExpired         = errors.New("verification state expired")
	ErrMissingProof    = errors.New("missing authorization proof")
	ErrMalformedState  = errors.New("malformed verification state")
)

type State struct {
	Token     string
	UserID    string
	GuildID   string
	CreatedAt time.Time
}

// Grant is the role assignment produced by a completed handshake.
type Grant struct {
	UserID  string
	GuildID string
}

// Handshake correlates OAuth redirects with pending users. It is not safe
// for concurrent use; the dispatch loop owns it.
type Handshake struct {
	ttl           time.Duration
	pending       map[string]State
	verified      map[string]struct{}
	fallbackGuild func() string
	random        io.Reader
}

func New(ttl time.Duration, fallbackGuild func() string) *Handshake {
	if fallbackGuild == nil {
		fallbackGuild = func() string { return "" }
	}
	return &Handshake{
		ttl:           ttl,
		pending:       make(map[string]State),
		verified:      make(map[string]struct{}),
		fallbackGuild: fallbackGuild,
		random:        rand.Reader,
	}
}

func (h *Handshake) WithRandom(r io.Reader) {
	h.random = r
}

// Begin mints a state token for userID, replacing any earlier pending one.
// The token is "<user>_<guild|dm>_<nonce>" so the callback can recover the
// user without a lookup.
func (h *Handshake) Begin(userID, guildID string, now time.Time) (string, error) {
	if _, ok := h.verified[userID]; ok {
		return "", ErrAlreadyVerified
	}
	if guildID == "" {
		guildID = NoGuild
	}

	nonce := make([]byte, 32)
	if _, err := io.ReadFull(h.random, nonce); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	token := userID + "_" + guildID + "_" + hex.EncodeToString(nonce)

	h.pending[userID] = State{Token: token, UserID: userID, GuildID: guildID, CreatedAt: now}
	return token, nil
}

func (h *Handshake) Complete(userID, token string, proof *oauth2.Token, now time.Time) (Grant, error) {
	state, ok := h.pending[userID]
	if !ok {
		return Grant{}, ErrNoPending
	}
	if state.Token != token {
		return Grant{}, ErrTokenMismatch
	}
	if h.expired(state, now) {
		delete(h.pending, userID)
		return Grant{}, ErrExpired
	}
	if proof == nil || proof.AccessToken == "" {
		return Grant{}, ErrMissingProof
	}

	delete(h.pending, userID)
	h.verified[userID] = struct{}{}

	guildID := state.GuildID
	if guildID == NoGuild {
		guildID = h.fallbackGuild()
	}
	return Grant{UserID: userID, GuildID: guildID}, nil
}

func (h *Handshake) Cancel(userID string) {
	delete(h.pending, userID)
}

func (h *Handshake) IsVerified(userID string) bool {
	_, ok := h.verified[userID]
	return ok
}

func (h *Handshake) Pending(userID string) (State, bool) {
	state, ok := h.pending[userID]
	return state, ok
}

func (h *Handshake) PendingCount() int  { return len(h.pending) }
func (h *Handshake) VerifiedCount() int { return len(h.verified) }

// Prune removes pending states older than the configured TTL.
func (h *Handshake) Prune(now time.Time) int {
	removed := 0
	for userID, state := range h.pending {
		if h.expired(state, now) {
			delete(h.pending, userID)
			removed++
		}
	}
	return removed
}

func (h *Handshake) expired(state State, now time.Time) bool {
	return h.ttl > 0 && now.Sub(state.CreatedAt) > h.ttl
}

// ParseState extracts the user and guild encoded in a state token. The guild
// is NoGuild when absent.
func ParseState(state string) (userID, guildID string, err error) {
	parts := strings.SplitN(state, "_", 3)
	userID = parts[0]
	if !isSnowflake(userID) {
		return "", "", ErrMalformedState
	}
	guildID = NoGuild
	if len(parts) > 1 && parts[1] != "" {
		guildID = parts[1]
		if guildID != NoGuild && !isSnowflake(guildID) {
			return "", "", ErrMalformedState
		}
	}
	return userID, guildID, nil
}

func isSnowflake(value string) bool {
	if value == "" || len(value) > 20 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
