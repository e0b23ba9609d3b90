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

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenSpending-Clone/os-cli/config"
	"github.com/OpenSpending-Clone/os-cli/journal"
	"github.com/OpenSpending-Clone/os-cli/services"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the validation service",
		Long: `Run an HTTP service that validates data packages on this machine's file
system and lists journaled uploads. The service's OpenAPI documentation is
served at /docs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.Read()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				conf.Service.Port = port
			}
			return runServe(conf)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "port on which the service listens")
	return cmd
}

func runServe(conf *config.Config) error {
	service, err := services.NewValidationService(*conf)
	if err != nil {
		return err
	}

	if err := journal.Init(conf.Journal); err != nil {
		slog.Warn(fmt.Sprintf("The upload journal is unavailable: %s", err.Error()))
	} else {
		defer journal.Finalize()
	}

	// Start the service in a goroutine so it doesn't block.
	errChan := make(chan error, 1)
	go func() {
		errChan <- service.Start(conf.Service.Port)
	}()

	// Intercept the SIGINT, SIGHUP, SIGTERM, and SIGQUIT signals, shutting down
	// the service as gracefully as possible if they are encountered.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	// Block till we receive one of the above signals (or the service fails).
	select {
	case err := <-errChan:
		return err
	case <-sigChan:
	}

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Wait for connections to close until the deadline elapses.
	slog.Info("Shutting down")
	return service.Shutdown(ctx)
}
