package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/franz/travel-sos/internal/locale"
	"github.com/franz/travel-sos/internal/settings"
	"github.com/franz/travel-sos/internal/store"
	"github.com/franz/travel-sos/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the databases and configuration",
	Long: `Run diagnostic checks to ensure tsos can operate correctly.

This command checks:
- SQLite version
- Seed document validity
- Reference database accessibility, integrity and search index
- Database location (network filesystems break SQLite locking)
- Settings database accessibility
- Display language resolution
- Disk space

With --repair, the search index is rebuilt before checking.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().Bool("repair", false, "Rebuild the search index")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repair, _ := cmd.Flags().GetBool("repair")

	util.InfoLog("=== tsos doctor ===")

	dbPath := GetConfigString("db", "tsos.db")
	settingsPath := GetConfigString("settings_db", "tsos-settings.db")

	results := []checkResult{
		checkSQLite(),
		checkSeedDocument(),
		checkDatabase(ctx, dbPath, repair),
		checkFilesystem(dbPath),
		checkSettings(ctx, settingsPath),
		checkLanguage(viper.GetString("language")),
		checkDiskSpace(dbPath),
	}

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	if hasErrors {
		util.ErrorLog("Some checks failed. Resolve the errors above before using tsos.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings.")
	} else {
		util.SuccessLog("All checks passed.")
	}
	return nil
}

func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{name: "SQLite", error: true, message: "unable to determine version"}
	}
	return checkResult{name: "SQLite", message: fmt.Sprintf("version %s (built-in)", version)}
}

func checkSeedDocument() checkResult {
	doc, source, err := seedDocument()
	if err == nil {
		err = doc.Validate()
	}
	if err != nil {
		return checkResult{name: "Seed document", error: true, message: err.Error()}
	}
	return checkResult{
		name:    "Seed document",
		message: fmt.Sprintf("%s, version %d, %d countries", source, doc.Version, len(doc.Countries)),
	}
}

// checkDatabase opens the reference database without seeding it
func checkDatabase(ctx context.Context, dbPath string, repair bool) checkResult {
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{name: "Database", message: fmt.Sprintf("%s (will be created and seeded on first run)", dbPath)}
		}
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("cannot access %s: %v", dbPath, err)}
	}
	if !info.Mode().IsRegular() {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("%s is not a regular file", dbPath)}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("cannot open %s: %v", dbPath, err)}
	}
	defer db.Close()

	if repair {
		if err := db.RebuildSearchIndex(ctx); err != nil {
			return checkResult{name: "Database", error: true, message: err.Error()}
		}
	}

	if err := db.CheckIntegrity(ctx); err != nil {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("%v (try --repair)", err)}
	}

	counts, err := db.Counts(ctx)
	if err != nil {
		return checkResult{name: "Database", error: true, message: err.Error()}
	}
	seedInfo, err := db.GetSeedInfo(ctx)
	if err != nil {
		return checkResult{name: "Database", error: true, message: err.Error()}
	}

	size := humanize.Bytes(uint64(info.Size()))
	if counts.Countries == 0 {
		return checkResult{name: "Database", warning: true, message: fmt.Sprintf("%s (%s, empty; run tsos seed)", dbPath, size)}
	}
	seeded := "not seeded by tsos"
	if seedInfo != nil {
		seeded = fmt.Sprintf("seed version %d", seedInfo.Version)
	}
	return checkResult{
		name: "Database",
		message: fmt.Sprintf("%s (%s, %s countries, %s numbers, %s)", dbPath, size,
			humanize.Comma(int64(counts.Countries)), humanize.Comma(int64(counts.EmergencyNumbers)), seeded),
	}
}

func checkFilesystem(dbPath string) checkResult {
	m, err := util.MountFor(filepath.Dir(dbPath))
	if err != nil {
		return checkResult{name: "Filesystem", warning: true, message: fmt.Sprintf("cannot read mount table: %v", err)}
	}
	if m == nil {
		return checkResult{name: "Filesystem", message: "mount table unavailable, assuming local"}
	}
	if m.IsNetwork() {
		return checkResult{
			name:    "Filesystem",
			warning: true,
			message: fmt.Sprintf("%s is on %s (%s); SQLite locking is unreliable on network filesystems", dbPath, m.MountPoint, m.FSType),
		}
	}
	return checkResult{name: "Filesystem", message: fmt.Sprintf("%s (%s)", m.MountPoint, m.FSType)}
}

func checkSettings(ctx context.Context, path string) checkResult {
	s, err := settings.Open(path, settings.Options{})
	if err != nil {
		return checkResult{name: "Settings", error: true, message: err.Error()}
	}
	defer s.Close()

	prefs := s.Load(ctx)
	return checkResult{
		name:    "Settings",
		message: fmt.Sprintf("%s (theme %s, first launch %t)", path, prefs.AppTheme, prefs.IsFirstLaunch),
	}
}

func checkLanguage(override string) checkResult {
	if override != "" {
		lang := locale.Resolve(override)
		if lang != override {
			return checkResult{
				name:    "Language",
				warning: true,
				message: fmt.Sprintf("%q resolves to %q (supported: %v)", override, lang, locale.Supported),
			}
		}
		return checkResult{name: "Language", message: lang + " (configured)"}
	}
	return checkResult{name: "Language", message: locale.DeviceLanguage() + " (device locale)"}
}

func checkDiskSpace(dbPath string) checkResult {
	dir := filepath.Dir(dbPath)
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return checkResult{name: "Disk space", warning: true, message: fmt.Sprintf("cannot determine disk space: %v", err)}
	}

	avail := stat.Bavail * uint64(stat.Bsize)
	// The dataset is small; a few MB is plenty
	if avail < 16*1024*1024 {
		return checkResult{name: "Disk space", warning: true, message: humanize.Bytes(avail) + " available (low space!)"}
	}
	return checkResult{name: "Disk space", message: humanize.Bytes(avail) + " available"}
}
