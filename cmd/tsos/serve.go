package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franz/travel-sos/internal/server"
	"github.com/franz/travel-sos/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultPollInterval = 2 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve countries and settings over HTTP",
	Long: `Serve the lookup API on --listen:

  GET   /api/countries                 ?lang=
  GET   /api/countries/search          ?q=&lang=
  GET   /api/countries/{id}            ?lang=
  GET   /api/countries/iso/{iso}       ?lang=
  GET   /api/countries/{id}/events     live updates (Server-Sent Events)
  GET   /api/settings
  PATCH /api/settings
  GET   /api/settings/events           live updates (Server-Sent Events)
  GET   /healthz

Writes made by other processes to the database are picked up by polling.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "Listen address (default 127.0.0.1:8080)")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := openEventLog()
	defer events.Close()

	db, err := openStore(ctx, events)
	if err != nil {
		return err
	}
	defer db.Close()

	prefs, err := openSettings(events)
	if err != nil {
		return err
	}
	defer prefs.Close()

	go db.PollExternalChanges(ctx, GetConfigDuration("poll_interval", defaultPollInterval))

	srv := server.New(server.Config{
		Countries: newRepository(db),
		Settings:  prefs,
		Language:  effectiveLanguage,
		Logger:    util.Logger(),
	})

	addr := GetConfigString("listen", "127.0.0.1:8080")
	util.InfoLog("Serving on http://%s", addr)
	return srv.ListenAndServe(ctx, addr)
}
