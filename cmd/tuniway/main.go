package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "tuniway",
		Short: "Tuniway session client",
		Long: `Tuniway session client.

Runs the local web front (serve) and manages the stored session from the
terminal. Both share the same session store, so a login from one is seen
by the other.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("TUNIWAY_CONFIG"), "YAML config file (env vars take precedence)")

	load := func() (*app, error) {
		return newApp(configPath)
	}

	rootCmd.AddCommand(
		serveCmd(load),
		loginCmd(load),
		registerCmd(load),
		logoutCmd(load),
		whoamiCmd(load),
		profileCmd(load),
		chatCmd(load),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m!\033[0m %s\n", fmt.Sprintf(format, args...))
}
