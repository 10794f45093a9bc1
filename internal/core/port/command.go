package port

import "csbot/internal/core/domain"

type CommandRegistry interface {
	// Lookup retrieves a registered command by its keyword, ignoring case and surrounding whitespace.
	Lookup(keyword string) (domain.Command, error)
	// ListCommands returns the keywords of all registered commands in alphabetical order.
	ListCommands() []string
	// HelpText returns one line per registered command with its keyword and description.
	HelpText() string
}
