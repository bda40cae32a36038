package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	envFile  string
	logLevel string
	demo     bool
	dataFile string
}

func newRootCommand() *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:     "bookkeeper",
		Short:   "Bank statement reconciliation backend",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.BoolVar(&flags.demo, "demo", false, "use the built-in demo dataset instead of Supabase")
	pf.StringVar(&flags.dataFile, "data", "", "JSON dataset file backing an in-memory store instead of Supabase")

	rootCmd.AddCommand(newServeCommand(&flags))
	rootCmd.AddCommand(newReconcileCommand(&flags))

	return rootCmd
}
