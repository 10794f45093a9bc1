package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Mention matches the Zulip ping of a user, "@**Full Name**" or "@**Full Name|id**".
type Mention struct {
	name    string
	pattern *regexp.Regexp
}

func NewMention(fullName string, userID int64) *Mention {
	quoted := regexp.QuoteMeta(fullName)
	return &Mention{
		name:    fullName,
		pattern: regexp.MustCompile(fmt.Sprintf(`@\*\*%s(\|%d)?\*\*`, quoted, userID)),
	}
}

// Ping returns the canonical mention token.
func (m *Mention) Ping() string {
	return "@**" + m.name + "**"
}

func (m *Mention) In(text string) bool {
	return m.pattern.MatchString(text)
}

// Strip removes a mention token at the beginning of text, ignoring leading whitespace.
func (m *Mention) Strip(text string) string {
	trimmed := strings.TrimLeft(text, " \t\r\n")

	loc := m.pattern.FindStringIndex(trimmed)
	if loc == nil || loc[0] != 0 {
		return text
	}

	return strings.TrimLeft(trimmed[loc[1]:], " \t\r\n")
}
