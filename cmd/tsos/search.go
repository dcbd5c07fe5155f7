package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/franz/travel-sos/internal/repository"
	"github.com/franz/travel-sos/internal/util"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search countries by name",
	Long: `Search countries by name in the display language. Matching ignores
case and accents; the last word may be incomplete ("united st").

With --interactive, each line typed on stdin replaces the query. Input is
debounced and only results for the latest query are printed. Queries
shorter than the minimum length return nothing. At end of input the last
query is answered and the command exits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().BoolP("interactive", "i", false, "Read queries from stdin as you type")
}

func runSearch(cmd *cobra.Command, args []string) error {
	interactive, _ := cmd.Flags().GetBool("interactive")
	if !interactive && len(args) == 0 {
		return cmd.Usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	events := openEventLog()
	defer events.Close()

	db, err := openStore(ctx, events)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := newRepository(db)
	lang := effectiveLanguage()

	if !interactive {
		printCountryList(cmd.OutOrStdout(), <-repo.SearchCountries(ctx, args[0], lang))
		return nil
	}

	util.InfoLog("Type a country name (Ctrl-D to quit)")
	searchInteractive(ctx, repo, cmd.InOrStdin(), cmd.OutOrStdout(), lang)
	return nil
}

// searchInteractive prints results for each line read from r. At end of
// input the last query is still answered before returning.
func searchInteractive(ctx context.Context, repo repository.CountryRepository, r io.Reader, w io.Writer, lang string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	input := make(chan string)
	go func() {
		defer close(input)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case input <- strings.TrimRight(scanner.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
	}()

	for items := range repo.SearchAsYouType(ctx, input, lang) {
		printCountryList(w, items)
	}
}
