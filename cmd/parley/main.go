package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parley-dev/parley/internal/errors"
)

// Build information. Populated at build-time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
╔═╗┌─┐┬─┐┬  ┌─┐┬ ┬
╠═╝├─┤├┬┘│  ├┤ └┬┘
╩  ┴ ┴┴└─┴─┘└─┘ ┴`

func main() {
	rootCmd := &cobra.Command{
		Use:   "parley",
		Short: "Interactive web conversations in plain Go",
		Long: `Parley runs interactive web applications written as ordinary Go
functions. A function gets a live session with one browser tab: it
sends output, waits for input, and the framework moves the messages.

  • Ambient session resolution, no handle threading
  • Goroutine and coroutine execution models
  • WebSocket transport with an HTTP polling fallback
  • Client-side JavaScript evaluation round trips
  • File upload spooling and downloads`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(errorsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

// printBanner prints the Parley ASCII art banner.
func printBanner() {
	fmt.Println(banner)
}

// success prints a success message with a green checkmark.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m "+format+"\n", args...)
}

// info prints an indented info message.
func info(format string, args ...any) {
	fmt.Printf("  "+format+"\n", args...)
}

// warn prints a warning message with a yellow marker.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m "+format+"\n", args...)
}
