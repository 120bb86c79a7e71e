package commands

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/teranos/softwaremap/logger"
	"github.com/teranos/softwaremap/sym"
	"github.com/teranos/softwaremap/version"
)

// printStartupBanner prints the server startup message
func printStartupBanner(w io.Writer, verbosity int, dbPath, addr string) {
	info := version.Get()

	body := fmt.Sprintf("Version:   %s (commit %s)\nBuilt:     %s\nVerbosity: %s\nDatabase:  %s\nListening: http://%s",
		info.Version, info.Short(), info.BuildTime, logger.LevelName(verbosity), dbPath, addr)

	box := pterm.DefaultBox.WithTitle(sym.Server + " softwaremap").Sprint(body)
	fmt.Fprintln(w, box)
	fmt.Fprintln(w, pterm.LightBlue("Press Ctrl+C to stop"))
}
