package main

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/travel-sos/internal/seed"
	"github.com/franz/travel-sos/internal/store"
	"github.com/franz/travel-sos/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the emergency number dataset into the database",
	Long: `Validate a seed document and load it into the reference database.

The bundled dataset is used unless --seed-file is given. Loading is
idempotent: an already seeded database is left untouched unless the
document carries a newer version, or --force is set. Reseeding updates
rows in place by ISO code and service code, so ids stay stable.

The whole document is applied in one transaction; a malformed document
or a failed write leaves the database unchanged.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().Bool("force", false, "Reapply the document even if the database is current")
	seedCmd.Flags().Bool("check", false, "Validate the document without writing")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	force, _ := cmd.Flags().GetBool("force")
	checkOnly, _ := cmd.Flags().GetBool("check")

	doc, source, err := seedDocument()
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	util.SuccessLog("Seed document %s is valid (version %d, %d service types, %d countries)",
		source, doc.Version, len(doc.ServiceTypes), len(doc.Countries))
	if checkOnly {
		return nil
	}

	dbPath := GetConfigString("db", "tsos.db")
	util.InfoLog("Opening database: %s", dbPath)

	db, err := store.OpenWithOptions(dbPath, &store.OpenOptions{Logger: util.Logger()})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	events := openEventLog()
	defer events.Close()

	loader := seed.New(&seed.Config{
		Store:        db,
		Logger:       util.Logger(),
		Events:       events,
		ShowProgress: util.ShowProgress() && !viper.GetBool("verbose"),
	})

	result, err := loader.Load(ctx, doc, seed.Options{Source: source, Force: force})
	if err != nil {
		return err
	}

	if result.Skipped {
		util.InfoLog("Nothing to do: %s", result.Reason)
		return nil
	}

	util.SuccessLog("Seeded version %d in %v", result.Version, result.Duration.Round(time.Millisecond))
	util.InfoLog("  Service types: %d", result.ServiceTypes)
	util.InfoLog("  Countries: %d", result.Countries)
	util.InfoLog("  Names: %d", result.Names)
	util.InfoLog("  Numbers: %d", result.Numbers)
	return nil
}
