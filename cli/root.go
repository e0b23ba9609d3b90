// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package cli provides the os command-line interface: validating Open
// Spending data packages, uploading them, and serving validations over HTTP.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenSpending-Clone/os-cli/services"
)

// Version information, which may be set at build time with
// -ldflags "-X github.com/OpenSpending-Clone/os-cli/cli.Version=..."
var Version string

// level of the default logger, lowered to DEBUG by --debug
var logLevel = new(slog.LevelVar)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var debug, logJSON bool
	rootCmd := &cobra.Command{
		Use:   "os",
		Short: "Open Spending CLI",
		Long: `os checks Open Spending data packages (descriptor and data) and uploads
them to Open Spending.

Configuration is read from $OPENSPENDINGRC, ./.openspendingrc or
~/.openspendingrc, and may be overridden by OPENSPENDING_* environment
variables.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setUpLogging(cmd.ErrOrStderr(), debug, logJSON)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debugging information")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write log records as JSON")

	version := Version
	if version == "" {
		version = services.Version
	}
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("os-cli {{.Version}}\n")

	rootCmd.AddCommand(NewVersionCommand(version))
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewUploadCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewHistoryCommand())

	return rootCmd
}

// installs the default logger, which writes warnings and errors to w unless
// debugging is enabled
func setUpLogging(w io.Writer, debug, logJSON bool) {
	if debug {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelWarn)
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if logJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Execute runs the root command, reporting any error on stderr.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		styles := newStyles(os.Stderr)
		fmt.Fprintln(os.Stderr, paint(styles.failure, "Error: "+err.Error()))
		return err
	}
	return nil
}
