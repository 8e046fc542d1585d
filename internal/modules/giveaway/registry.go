package giveaway

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"voralith-bot/internal/utils"
)

var (
	ErrInvalidDuration = errors.New("invalid giveaway duration")
	ErrEmptyPrize      = errors.New("giveaway prize is required")
)

type JoinResult int

const (
	Joined JoinResult = iota
	AlreadyEnded
	AlreadyJoined
	NotFound
)

func (r JoinResult) String() string {
	switch r {
	case Joined:
		return "joined"
	case AlreadyEnded:
		return "already_ended"
	case AlreadyJoined:
		return "already_joined"
	default:
		return "not_found"
	}
}

type CreateRequest struct {
	Prize     string
	Duration  string
	HostID    string
	GuildID   string
	ChannelID string
}

// Giveaway is a snapshot of an active giveaway. Participants keeps join order.
type Giveaway struct {
	ID           int
	Prize        string
	EndsAt       time.Time
	HostID       string
	GuildID      string
	ChannelID    string
	MessageID    string
	Participants []string
}

// Result describes a concluded giveaway. Winner is empty when nobody joined.
type Result struct {
	Giveaway Giveaway
	Winner   string
}

func (r Result) HasWinner() bool { return r.Winner != "" }

type entry struct {
	Giveaway
	joined map[string]struct{}
}

// Registry owns every active giveaway. Ids start at 1 and are never reused.
// It is not safe for concurrent use; the dispatch loop owns it.
type Registry struct {
	nextID    int
	giveaways map[int]*entry
	pick      func(n int) int
}

func NewRegistry() *Registry {
	return &Registry{
		nextID:    1,
		giveaways: make(map[int]*entry),
		pick:      rand.Intn,
	}
}

// WithPicker replaces the winner draw. pick(n) must return a value in [0, n).
func (r *Registry) WithPicker(pick func(n int) int) {
	r.pick = pick
}

func (r *Registry) Create(req CreateRequest, now time.Time) (Giveaway, error) {
	prize := strings.TrimSpace(req.Prize)
	if prize == "" {
		return Giveaway{}, ErrEmptyPrize
	}
	duration, err := utils.ParseDuration(req.Duration)
	if err != nil {
		return Giveaway{}, fmt.Errorf("%w: %q", ErrInvalidDuration, req.Duration)
	}

	id := r.nextID
	r.nextID++
	g := &entry{
		Giveaway: Giveaway{
			ID:        id,
			Prize:     prize,
			EndsAt:    now.Add(duration),
			HostID:    req.HostID,
			GuildID:   req.GuildID,
			ChannelID: req.ChannelID,
		},
		joined: make(map[string]struct{}),
	}
	r.giveaways[id] = g
	return g.snapshot(), nil
}

func (r *Registry) SetMessageID(id int, messageID string) bool {
	g := r.giveaways[id]
	if g == nil {
		return false
	}
	g.MessageID = messageID
	return true
}

// Discard drops a giveaway without a draw, used when its announcement could
// not be posted.
func (r *Registry) Discard(id int) {
	delete(r.giveaways, id)
}

func (r *Registry) Get(id int) (Giveaway, bool) {
	g := r.giveaways[id]
	if g == nil {
		return Giveaway{}, false
	}
	return g.snapshot(), true
}

func (r *Registry) Join(id int, userID string, now time.Time) JoinResult {
	g := r.giveaways[id]
	if g == nil {
		return NotFound
	}
	if !now.Before(g.EndsAt) {
		return AlreadyEnded
	}
	if _, ok := g.joined[userID]; ok {
		return AlreadyJoined
	}
	g.joined[userID] = struct{}{}
	g.Participants = append(g.Participants, userID)
	return Joined
}

// Active lists giveaways of a guild ordered by id. An empty guildID lists all.
func (r *Registry) Active(guildID string) []Giveaway {
	out := make([]Giveaway, 0, len(r.giveaways))
	for _, g := range r.giveaways {
		if guildID != "" && g.GuildID != guildID {
			continue
		}
		out = append(out, g.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	return len(r.giveaways)
}

// Conclude draws a winner and removes the giveaway. It reports false when the
// giveaway is already gone, so a second call never produces another draw.
func (r *Registry) Conclude(id int) (Result, bool) {
	g := r.giveaways[id]
	if g == nil {
		return Result{}, false
	}
	delete(r.giveaways, id)

	result := Result{Giveaway: g.snapshot()}
	if n := len(g.Participants); n > 0 {
		result.Winner = g.Participants[r.pick(n)]
	}
	return result, true
}

// Sweep concludes every giveaway whose end time is at or before now.
func (r *Registry) Sweep(now time.Time) []Result {
	var expired []int
	for id, g := range r.giveaways {
		if !g.EndsAt.After(now) {
			expired = append(expired, id)
		}
	}
	sort.Ints(expired)

	results := make([]Result, 0, len(expired))
	for _, id := range expired {
		if result, ok := r.Conclude(id); ok {
			results = append(results, result)
		}
	}
	return results
}

func (g *entry) snapshot() Giveaway {
	out := g.Giveaway
	out.Participants = append([]string(nil), g.Participants...)
	return out
}
