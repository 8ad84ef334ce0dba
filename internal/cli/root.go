// Package cli implements the promptopt command-line interface.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	successIcon = color.New(color.FgGreen).Sprint("✓")
	errorIcon   = color.New(color.FgRed).Sprint("✗")

	info = color.New(color.FgCyan).SprintFunc()
	dim  = color.New(color.Faint).SprintFunc()
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "promptopt",
		Short: "Prompt optimization service",
		Long: `promptopt rewrites prompts to cut token usage or raise quality,
prices them across models and serves the optimizer over HTTP.

Configuration comes from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewTokensCmd())
	rootCmd.AddCommand(NewCompareCmd())
	rootCmd.AddCommand(NewOptimizeCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "promptopt %s\n", Version)
		},
	}
}

// Execute runs the CLI.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorIcon, err.Error())
		return err
	}
	return nil
}

// promptText joins the arguments, or reads stdin when the only argument is "-".
func promptText(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", fmt.Errorf("no prompt given")
	}
	return text, nil
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", successIcon, fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s: %s\n", dim(label), value)
}
