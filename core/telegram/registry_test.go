package telegram

import (
	"testing"

	"github.com/casewatch/casebot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func buildRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "start"})
	reg.RegisterCommand("/statistik", commands.Command{Handler: noop, Description: "usage statistics"})
	reg.RegisterCommand("/abo", commands.Command{Handler: noop, Description: "subscriptions"})
	reg.RegisterCommand("/ort", commands.Command{Handler: noop, Description: "district report", Aliases: []string{"/daten"}})
	reg.RegisterCommand("/hilfe", commands.Command{Handler: noop, Description: "help", Aliases: []string{"/help"}})
	return reg
}

func TestLookupCommandLongestPrefixWins(t *testing.T) {
	reg := buildRegistry(t)

	// "/statistik" shares the prefix "/start" up to "/sta"; the longer
	// registered name must win.
	key, args, _, ok := reg.LookupCommand("/statistik")
	if !ok || key != "/statistik" {
		t.Fatalf("LookupCommand(/statistik) = %q, ok=%v", key, ok)
	}
	if args != "" {
		t.Fatalf("unexpected args %q", args)
	}
}

func TestLookupCommandCaseInsensitive(t *testing.T) {
	reg := buildRegistry(t)
	for _, in := range []string{"/ABO", "/Abo", "abo", "ABO"} {
		key, _, _, ok := reg.LookupCommand(in)
		if !ok || key != "/abo" {
			t.Fatalf("LookupCommand(%q) = %q, ok=%v", in, key, ok)
		}
	}
}

func TestLookupCommandSlashOptionalWithArgs(t *testing.T) {
	reg := buildRegistry(t)
	key, args, _, ok := reg.LookupCommand("Ort Berlin Mitte")
	if !ok || key != "/ort" {
		t.Fatalf("LookupCommand(Ort Berlin Mitte) = %q, ok=%v", key, ok)
	}
	if args != "Berlin Mitte" {
		t.Fatalf("args = %q, argument case must survive", args)
	}
}

func TestLookupCommandAlias(t *testing.T) {
	reg := buildRegistry(t)
	key, args, _, ok := reg.LookupCommand("/daten München")
	if !ok || key != "/ort" {
		t.Fatalf("alias lookup = %q, ok=%v", key, ok)
	}
	if args != "München" {
		t.Fatalf("args = %q", args)
	}

	key, _, _, ok = reg.LookupCommand("help")
	if !ok || key != "/hilfe" {
		t.Fatalf("alias lookup(help) = %q, ok=%v", key, ok)
	}
}

func TestLookupCommandWordBoundary(t *testing.T) {
	reg := buildRegistry(t)
	// "abonnieren" must not resolve to /abo.
	if key, _, _, ok := reg.LookupCommand("abonnieren"); ok {
		t.Fatalf("expected no match, got %q", key)
	}
	if _, _, _, ok := reg.LookupCommand("completely unrelated"); ok {
		t.Fatal("expected no match for free text")
	}
	if _, _, _, ok := reg.LookupCommand(""); ok {
		t.Fatal("expected no match for empty text")
	}
}

func TestRegisterCommandRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "missing slash"})
	reg.RegisterCommand("/nohandler", commands.Command{Description: "no handler"})
	reg.RegisterCommand("/nodesc", commands.Command{Handler: noop})
	if n := len(reg.Commands()); n != 0 {
		t.Fatalf("expected empty registry, got %d commands", n)
	}
}

func TestListCommandsHidesHidden(t *testing.T) {
	reg := buildRegistry(t)
	reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "debug", Hidden: true})
	for _, cmd := range reg.ListCommands(true) {
		if cmd.Text == "debug" {
			t.Fatal("hidden command leaked into visible list")
		}
	}
	found := false
	for _, cmd := range reg.ListCommands(false) {
		if cmd.Text == "debug" {
			found = true
		}
	}
	if !found {
		t.Fatal("hidden command missing from full list")
	}
}
