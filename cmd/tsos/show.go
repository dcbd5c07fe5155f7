package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/franz/travel-sos/internal/repository"
	"github.com/franz/travel-sos/internal/store"
	"github.com/franz/travel-sos/internal/util"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <iso-code|id>",
	Short: "Show the emergency numbers of a country",
	Long: `Show a country's emergency numbers with service names in the display
language. Names missing in that language fall back to English, then to
the ISO or service code.

With --watch the view is reprinted whenever the database changes, until
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolP("watch", "w", false, "Keep running and reprint on changes")
}

func runShow(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	events := openEventLog()
	defer events.Close()

	db, err := openStore(ctx, events)
	if err != nil {
		return err
	}
	defer db.Close()

	if watch {
		go db.PollExternalChanges(ctx, GetConfigDuration("poll_interval", defaultPollInterval))
	}

	repo := newRepository(db)
	id, err := resolveCountry(ctx, repo, args[0])
	if err != nil {
		return err
	}

	lang := effectiveLanguage()
	for details := range repo.CountryDetails(ctx, id) {
		if details == nil {
			return fmt.Errorf("%w: country %s", util.ErrNotFound, args[0])
		}
		printDetails(os.Stdout, details, lang)
		if !watch {
			return nil
		}
		fmt.Fprintln(os.Stdout)
	}
	return nil
}

// resolveCountry accepts a numeric id or an ISO code
func resolveCountry(ctx context.Context, repo repository.CountryRepository, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}
	c, err := repo.CountryByISO(ctx, arg)
	if err != nil {
		return 0, err
	}
	if c == nil {
		return 0, fmt.Errorf("%w: no country with ISO code %q", util.ErrNotFound, arg)
	}
	return c.ID, nil
}

func printDetails(w io.Writer, d *store.CountryDetails, lang string) {
	fmt.Fprintf(w, "%s (%s)\n", d.Country.DisplayName(lang), d.Country.ISOCode)
	if len(d.Services) == 0 {
		fmt.Fprintln(w, "  No emergency numbers recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, svc := range d.Services {
		line := fmt.Sprintf("  %s\t%s", svc.DisplayName(lang), svc.Number.Number)
		if svc.Number.Description != "" {
			line += "\t" + svc.Number.Description
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
}
