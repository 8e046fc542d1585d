package tickets

import (
	"errors"
	"strings"
	"unicode"
)

var ErrUnknownKind = errors.New("unknown ticket kind")

// Kind describes one entry of the ticket menu. Custom orders use their own
// channel prefix; every other kind opens a regular ticket channel.
type Kind struct {
	Value       string
	Label       string
	Description string
	Prefix      string
}

var Kinds = []Kind{
	{Value: "purchase", Label: "Purchase", Description: "Questions about buying a product", Prefix: "ticket"},
	{Value: "technical", Label: "Technical Support", Description: "Something is not working", Prefix: "ticket"},
	{Value: "general", Label: "General", Description: "Anything else", Prefix: "ticket"},
	{Value: "report", Label: "Report", Description: "Report a user or a problem", Prefix: "ticket"},
	{Value: "custom-order", Label: "Custom Order", Description: "Request a custom order", Prefix: "custom-order"},
}

func Lookup(value string) (Kind, error) {
	for _, kind := range Kinds {
		if kind.Value == value {
			return kind, nil
		}
	}
	return Kind{}, ErrUnknownKind
}

// ChannelName builds the support channel name for a user, e.g.
// "ticket-some-user". Characters Discord strips from channel names are
// dropped.
func ChannelName(kind Kind, username string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(username) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "user"
	}
	full := kind.Prefix + "-" + name
	if len(full) > 90 {
		full = strings.TrimRight(full[:90], "-")
	}
	return full
}

// IsSupportChannel reports whether a channel name belongs to a ticket or
// custom order conversation.
func IsSupportChannel(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "ticket-") || strings.Contains(lower, "custom-order")
}

func MatchesCategory(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
