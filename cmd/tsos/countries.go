package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/franz/travel-sos/internal/store"
	"github.com/franz/travel-sos/internal/util"
	"github.com/spf13/cobra"
)

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List every country with its name in the display language",
	Long: `List every country that has a name in the display language, sorted
by that name. Countries without a translation are not listed; use
--lang en to see all of them.`,
	Args: cobra.NoArgs,
	RunE: runCountries,
}

func init() {
	rootCmd.AddCommand(countriesCmd)
}

func runCountries(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := openEventLog()
	defer events.Close()

	db, err := openStore(ctx, events)
	if err != nil {
		return err
	}
	defer db.Close()

	lang := effectiveLanguage()
	items := <-newRepository(db).AllCountries(ctx, lang)
	printCountryList(cmd.OutOrStdout(), items)
	return nil
}

func printCountryList(w io.Writer, items []store.CountryListItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No countries found.")
		return
	}
	width := nameWidth(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tISO\tNAME")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", it.CountryID, it.ISOCode, clip(it.LocalizedName, width))
	}
	tw.Flush()
}

// nameWidth is the room left for the NAME column on a terminal, or 0 when
// w is not one.
func nameWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !util.IsTerminal(f.Fd()) {
		return 0
	}
	// ID and ISO columns with padding
	return max(util.GetTerminalWidth()-14, 10)
}

// clip shortens s to width runes, marking the cut with an ellipsis.
// A width of 0 means unlimited.
func clip(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}
