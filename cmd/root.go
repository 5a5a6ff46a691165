// Package cmd provides the command-line interface for the nucleus
// emulation.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any
// subcommands.
var rootCmd = &cobra.Command{
	Use:   "nucleus",
	Short: "nucleus boots directed-record media on an emulated channel-I/O machine.",
	Long: `nucleus emulates a machine with a line console and a boot block ` +
		`device, runs the resident kernel on it, and loads a second-stage ` +
		`program from a directed-record boot image.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	// Flag defaults may come from a .env file next to the binary.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// envDefault reads a default value for a flag from the environment.
func envDefault(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}

	return fallback
}
