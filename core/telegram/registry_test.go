package telegram

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/clubbot/core/telegram/commands"
)

func noopHandler(tele.Context) error { return nil }

func TestRegisterAndLookupCommand(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     noopHandler,
		Description: "start",
	})

	name, cmd, ok := reg.LookupCommand("/start")
	if !ok || name != "/start" || cmd.Handler == nil {
		t.Fatalf("lookup failed: ok=%v name=%q", ok, name)
	}

	// Lookup tolerates a missing slash.
	if _, _, ok := reg.LookupCommand("start"); !ok {
		t.Fatal("expected slash-less lookup to succeed")
	}
	if _, _, ok := reg.LookupCommand("/missing"); ok {
		t.Fatal("expected miss for unknown command")
	}
}

func TestRegisterCommandRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("start", commands.Command{Handler: noopHandler, Description: "no slash"})
	reg.RegisterCommand("/nodesc", commands.Command{Handler: noopHandler})
	reg.RegisterCommand("/nohandler", commands.Command{Description: "x"})

	if n := len(reg.Commands()); n != 0 {
		t.Fatalf("expected no registrations, got %d", n)
	}
}

func TestListCommandsHidesAdminAndHidden(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noopHandler, Description: "start"})
	reg.RegisterCommand("/cancel", commands.Command{Handler: noopHandler, Description: "cancel", Hidden: true})
	reg.RegisterCommand("/stats", commands.Command{Handler: noopHandler, Description: "stats", AdminOnly: true})

	visible := reg.ListCommands(true)
	if len(visible) != 1 || visible[0].Text != "/start" {
		t.Fatalf("unexpected visible commands: %+v", visible)
	}
	if all := reg.ListCommands(false); len(all) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(all))
	}
}

func TestCallbackRegistration(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("plan", noopHandler); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterCallback("plan", noopHandler); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if err := reg.RegisterCallback("", noopHandler); err == nil {
		t.Fatal("expected error for empty key")
	}

	if _, ok := reg.GetCallback("plan"); !ok {
		t.Fatal("callback not found after registration")
	}
	if _, ok := reg.GetCallback("other"); ok {
		t.Fatal("unexpected callback hit")
	}
}
