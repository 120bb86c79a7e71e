package sym

import (
	"testing"
	"unicode/utf8"
)

func TestSymbolToCommandAndCommandToSymbolAreBidirectional(t *testing.T) {
	for symbol, cmd := range SymbolToCommand {
		got, ok := CommandToSymbol[cmd]
		if !ok {
			t.Errorf("SymbolToCommand has %q → %q, but CommandToSymbol has no entry for %q", symbol, cmd, cmd)
			continue
		}
		if got != symbol {
			t.Errorf("bidirectional mismatch: SymbolToCommand[%q] = %q, but CommandToSymbol[%q] = %q", symbol, cmd, cmd, got)
		}
	}
}

func TestCommandDescriptionsCoversAllCommands(t *testing.T) {
	for cmd := range CommandToSymbol {
		if _, ok := CommandDescriptions[cmd]; !ok {
			t.Errorf("CommandDescriptions missing entry for command %q", cmd)
		}
	}
	if len(CommandDescriptions) != len(CommandToSymbol) {
		t.Errorf("CommandDescriptions has %d entries, CommandToSymbol has %d", len(CommandDescriptions), len(CommandToSymbol))
	}
}

func TestSymbolsAreSingleRunes(t *testing.T) {
	for _, s := range []string{AM, IX, AT, Curate, Blurb, Pulse, PulseOpen, PulseClose, DB, Server} {
		if n := utf8.RuneCountInString(s); n != 1 {
			t.Errorf("symbol %q has %d runes, want 1", s, n)
		}
	}
}

func TestPrefixed(t *testing.T) {
	if got := Prefixed("ix", "Ingest"); got != IX+" Ingest" {
		t.Errorf("Prefixed(ix) = %q", got)
	}
	if got := Prefixed("version", "Version"); got != "Version" {
		t.Errorf("Prefixed(version) = %q", got)
	}
}
