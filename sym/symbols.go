// Package sym defines canonical symbols for softwaremap commands and stages.
// These symbols are stable across CLI output, structured logs, and docs.
package sym

// Command symbols. Each top-level CLI verb has a glyph.
const (
	AM     = "≡" // am: configuration
	IX     = "⨳" // ix: ingest from the knowledge base
	AT     = "✦" // at: reconciled dates
	Curate = "✓" // curate: curation flags
	Blurb  = "▣" // blurb: descriptive prose
	Pulse  = "꩜" // pulse: periodic batch runs
)

// System infrastructure symbols.
const (
	PulseOpen  = "✿" // scheduler startup
	PulseClose = "❀" // scheduler shutdown
	DB         = "⊔" // database/storage layer
	Server     = "⋈" // read-only HTTP API
)

// SymbolToCommand maps glyph strings to their command equivalents.
var SymbolToCommand = map[string]string{
	AM:     "am",
	IX:     "ix",
	AT:     "at",
	Curate: "curate",
	Blurb:  "blurb",
	Pulse:  "pulse",
}

// CommandToSymbol maps commands to their canonical glyph strings.
var CommandToSymbol = map[string]string{
	"am":     AM,
	"ix":     IX,
	"at":     AT,
	"curate": Curate,
	"blurb":  Blurb,
	"pulse":  Pulse,
}

// CommandDescriptions provides one-line explanations used in help output.
var CommandDescriptions = map[string]string{
	"am":     "Configuration: settings and where they come from",
	"ix":     "Ingest: fetch entities, dates, genres and descriptions",
	"at":     "Dates: reconciled canonical dates",
	"curate": "Curation: include or exclude entities from the rendered history",
	"blurb":  "Blurbs: manual or knowledge-base descriptions",
	"pulse":  "Pulse: periodic enrichment runs",
}

// Prefixed returns the command's glyph followed by text, or text alone for
// commands without a glyph.
func Prefixed(command, text string) string {
	if s, ok := CommandToSymbol[command]; ok {
		return s + " " + text
	}
	return text
}
