package main

import (
	"fmt"
	"os"

	"github.com/franz/travel-sos/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "tsos",
		Short: "Travel SOS - emergency numbers for every country, offline",
		Long: `tsos looks up local emergency numbers (police, ambulance, fire, dispatch)
by country, in your language, from a local SQLite database seeded with a
bundled dataset. No network access is needed.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.SetColors(util.IsTerminal(os.Stderr.Fd()))
			util.SetVerbose(viper.GetBool("verbose"))
			util.SetQuiet(viper.GetBool("quiet"))
		},
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/tsos.yaml)")
	rootCmd.PersistentFlags().String("db", "tsos.db", "reference database file")
	rootCmd.PersistentFlags().String("settings-db", "tsos-settings.db", "settings database file")
	rootCmd.PersistentFlags().StringP("lang", "l", "", "display language (default: device locale)")
	rootCmd.PersistentFlags().String("seed-file", "", "seed document to use instead of the bundled dataset")
	rootCmd.PersistentFlags().String("snapshot", "", "prepackaged database copied into place on first run")
	rootCmd.PersistentFlags().String("events-dir", "artifacts", "directory for the JSONL event log")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("settings_db", rootCmd.PersistentFlags().Lookup("settings-db"))
	viper.BindPFlag("language", rootCmd.PersistentFlags().Lookup("lang"))
	viper.BindPFlag("seed_file", rootCmd.PersistentFlags().Lookup("seed-file"))
	viper.BindPFlag("snapshot", rootCmd.PersistentFlags().Lookup("snapshot"))
	viper.BindPFlag("events_dir", rootCmd.PersistentFlags().Lookup("events-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	viper.SetDefault("listen", "127.0.0.1:8080")
	viper.SetDefault("search_debounce", "300ms")
	viper.SetDefault("search_min_length", 2)
	viper.SetDefault("poll_interval", "2s")
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("tsos")
		viper.SetConfigType("yaml")
	}

	// TSOS_DB, TSOS_SETTINGS_DB, TSOS_LANGUAGE, ...
	viper.SetEnvPrefix("TSOS")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
