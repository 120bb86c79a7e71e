package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/softwaremap/logger"
	"github.com/teranos/softwaremap/pulse/schedule"
	"github.com/teranos/softwaremap/server"
)

// ServerCmd starts the read-only HTTP API
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Serve annotations over a read-only HTTP API",
	Long: `Serve entity records to the timeline renderer.

Endpoints:
  GET /health                        Liveness and build info
  GET /api/entity?id=Q42             One entity with annotation, classes and genres
  GET /api/entities[?all=true]       Enabled entities (all=true includes disabled)
  GET /api/entities?disputed=true    Entities whose canonical date is disputed
  GET /api/stats                     Store statistics
  GET /api/runs[?task=dates]         Recent pipeline runs
  GET /node?uri=<entity URI>         Same as /api/entity, addressed by URI`,
	RunE: runServer,
}

var (
	serverPort int
	serverHost string
)

func init() {
	ServerCmd.Flags().IntVar(&serverPort, "port", 0, "Port to listen on (default: server.port)")
	ServerCmd.Flags().StringVar(&serverHost, "host", "127.0.0.1", "Interface to listen on")
}

func runServer(cmd *cobra.Command, args []string) error {
	v := verbosity(cmd)
	if v == 0 {
		v = 1
	}

	cfg, st, database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	port := cfg.GetServerPort()
	if serverPort > 0 {
		port = serverPort
	}
	addr := fmt.Sprintf("%s:%d", serverHost, port)

	printStartupBanner(cmd.OutOrStdout(), v, cfg.GetDatabasePath(), addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(st, schedule.NewRunStore(database), logger.Logger)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return err
	}
	pterm.Info.Println("Server stopped")
	return nil
}
