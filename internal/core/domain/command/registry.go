package command

import (
	"context"
	"csbot/internal/core/domain"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
)

// Registry maps normalized keywords to commands. It is filled during startup and only read
// afterwards, so lookups are safe from concurrent routers without locking.
type Registry struct {
	commands map[string]domain.Command
}

type Option func(*domain.Command)

// Privileged restricts a command to organization owners and administrators.
func Privileged() Option {
	return func(c *domain.Command) {
		c.Privileged = true
	}
}

const (
	helpKeyword     = "help"
	helpDescription = "List all available commands."
)

// NewRegistry returns a registry holding the built-in help command.
func NewRegistry() *Registry {
	r := &Registry{commands: make(map[string]domain.Command)}

	r.commands[helpKeyword] = domain.Command{
		Keyword:     helpKeyword,
		Description: helpDescription,
		Handler: func(_ context.Context, _ domain.Sender, _ string, _ *domain.Message) (string, error) {
			return r.HelpText(), nil
		},
	}

	return r
}

func (r *Registry) Register(keyword, description string, handler domain.Handler, opts ...Option) error {
	if r.commands == nil {
		r.commands = make(map[string]domain.Command)
	}

	key := normalize(keyword)
	if key == "" || strings.IndexFunc(key, unicode.IsSpace) >= 0 || handler == nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCommand, keyword)
	}

	if _, ok := r.commands[key]; ok {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateCommand, key)
	}

	cmd := domain.Command{
		Keyword:     key,
		Description: description,
		Handler:     handler,
	}
	for _, opt := range opts {
		opt(&cmd)
	}

	log.Info().Str("command", key).Bool("privileged", cmd.Privileged).Msg("adding command handler to registry")
	r.commands[key] = cmd

	return nil
}

func (r *Registry) Lookup(keyword string) (domain.Command, error) {
	key := normalize(keyword)
	log.Debug().Str("command", key).Msg("fetching command handler from registry")

	cmd, ok := r.commands[key]
	if !ok {
		return domain.Command{}, fmt.Errorf("%w: %q", domain.ErrCommandNotFound, key)
	}

	return cmd, nil
}

// ListCommands returns all registered keywords in alphabetical order.
func (r *Registry) ListCommands() []string {
	keys := make([]string, 0, len(r.commands))
	for k := range r.commands {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

func (r *Registry) HelpText() string {
	var b strings.Builder

	for i, k := range r.ListCommands() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s — %s", k, r.commands[k].Description)
	}

	return b.String()
}

// ParseCommandArgs returns everything after the first word, keeping line breaks.
func ParseCommandArgs(text string) string {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)

	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}

	return strings.TrimLeftFunc(text[i:], unicode.IsSpace)
}

func ParseCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}

	return normalize(fields[0])
}

func normalize(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}
