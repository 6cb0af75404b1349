package telegram

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/casewatch/casebot/core/logger"
	"github.com/casewatch/casebot/core/telegram/commands"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Registry holds bot commands and the fallback handlers for everything that
// is not a command.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	callback         tele.HandlerFunc
	textFallback     tele.HandlerFunc
	locationFallback tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]commands.Command),
	}
}

// RegisterCommand adds a new command. The name must carry the leading slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	if r == nil || name == "" || cmd.Handler == nil || cmd.Description == "" {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "invalid"),
		)
		return
	}
	if name[0] != '/' {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "no_slash_prefix"),
		)
		return
	}
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[key]; exists {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.duplicate",
			slog.String("name", name),
		)
		return
	}
	r.commands[key] = cmd
}

// ListCommands returns a slice of tele.Command, optionally filtering out
// hidden commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for cmd, meta := range r.commands {
		if visibleOnly && meta.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(cmd, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves input text to the command whose name or alias is the
// longest registered prefix of the text. Matching is case-insensitive and a
// missing leading slash is tolerated. It returns the canonical key, the
// remaining argument string, and the command.
func (r *Registry) LookupCommand(text string) (string, string, commands.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Matching runs on a lowered copy; the argument remainder is sliced
	// from the original so its case survives.
	orig := strings.TrimSpace(text)
	if orig == "" {
		return "", "", commands.Command{}, false
	}
	if !strings.HasPrefix(orig, "/") {
		orig = "/" + orig
	}
	lowered := strings.ToLower(orig)

	var (
		bestKey string
		bestLen int
		best    commands.Command
		found   bool
	)
	match := func(key, name string, cmd commands.Command) {
		if !strings.HasPrefix(lowered, name) {
			return
		}
		// a prefix only matches at a word boundary
		if len(lowered) > len(name) && lowered[len(name)] != ' ' {
			return
		}
		if len(name) > bestLen {
			bestKey, bestLen, best, found = key, len(name), cmd, true
		}
	}
	for key, cmd := range r.commands {
		match(key, key, cmd)
		for _, alias := range cmd.Aliases {
			alias = strings.ToLower(alias)
			if !strings.HasPrefix(alias, "/") {
				alias = "/" + alias
			}
			match(key, alias, cmd)
		}
	}
	if !found {
		return "", "", commands.Command{}, false
	}
	args := strings.TrimSpace(orig[bestLen:])
	return bestKey, args, best, true
}

// Commands returns a copy of all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// SetCallbackHandler wires the single handler that interprets all inline
// button callbacks.
func (r *Registry) SetCallbackHandler(h tele.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callback = h
}

// CallbackHandler returns the wired callback handler.
func (r *Registry) CallbackHandler() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callback
}

// SetTextFallback sets the handler for text that resolves to no command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textFallback = h
}

// TextFallback returns the current text fallback handler.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// SetLocationFallback sets the handler for shared locations.
func (r *Registry) SetLocationFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locationFallback = h
}

// LocationFallback returns the current location handler.
func (r *Registry) LocationFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locationFallback
}

// InitBotCommands sets the Telegram bot commands shown in the command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
