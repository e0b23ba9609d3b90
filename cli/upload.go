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
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/OpenSpending-Clone/os-cli/auth"
	"github.com/OpenSpending-Clone/os-cli/config"
	"github.com/OpenSpending-Clone/os-cli/journal"
	"github.com/OpenSpending-Clone/os-cli/upload"
)

const msgNoConfig = "Uploading requires a config file. Run `os config ensure` to write one,\n" +
	"then add your owner and token (or set OPENSPENDING_OWNER and OPENSPENDING_TOKEN)."

// UploadOptions holds options for the upload command.
type UploadOptions struct {
	// also write a zip archive of the package next to it
	Archive bool
}

// NewUploadCommand creates the upload command.
func NewUploadCommand() *cobra.Command {
	opts := &UploadOptions{}
	cmd := &cobra.Command{
		Use:   "upload [path]",
		Short: "Upload an Open Spending data package to storage (requires a token)",
		Long: `Upload a valid Open Spending data package (the current directory by default)
to Open Spending on behalf of the configured owner. Each upload is recorded in
the upload journal (see "os history").`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runUpload(cmd, path, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "also write a zip archive of the package next to it")
	return cmd
}

func runUpload(cmd *cobra.Command, path string, opts *UploadOptions) error {
	out := cmd.OutOrStdout()
	styles := newStyles(out)

	// don't proceed without a config
	configPath := config.Locate()
	if configPath == "" {
		fmt.Fprintln(out, paint(styles.failure, msgNoConfig))
		return &config.NotFoundError{}
	}
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}

	pkg, descriptorPath, err := upload.LoadPackage(path)
	if err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	client := upload.SecureHttpClient(time.Duration(conf.Timeout) * time.Second)
	server, err := auth.NewApiAuthServer(&client, conf.ApiUrl, conf.Token)
	if err != nil {
		return err
	}
	slog.Debug(fmt.Sprintf("Authenticated as %s", server.User.Username))

	if err := journal.Init(conf.Journal); err != nil {
		slog.Warn(fmt.Sprintf("Uploads won't be journaled: %s", err.Error()))
	} else {
		defer journal.Finalize()
	}

	uploader := upload.New(&client, server, conf.Owner)
	uploader.Progress = func(file upload.File) {
		fmt.Fprintln(out, paint(styles.muted,
			fmt.Sprintf("  stored %s (%s)", file.Name, humanize.Bytes(uint64(file.Length)))))
	}

	fmt.Fprintln(out, paint(styles.success, "Your data is now being uploaded to Open Spending.\n"))
	result, err := uploader.Upload(context.Background(), path)
	if err != nil {
		var invalid *upload.InvalidPackageError
		if errors.As(err, &invalid) {
			fmt.Fprintln(out, paint(styles.failure, msgPackageError))
			fmt.Fprint(out, paint(styles.report, invalid.Report.Text()))
			fmt.Fprintln(out, msgRequiredFields, RequiredFieldsUrl)
			return &ValidationFailedError{Path: path, Issues: len(invalid.Report.Issues)}
		}
		return err
	}
	fmt.Fprintf(out, "%d file(s), %s in total (upload %s)\n", len(result.Files),
		humanize.Bytes(uint64(result.PayloadSize)), result.Id)

	if opts.Archive {
		root, err := filepath.Abs(filepath.Dir(descriptorPath))
		if err != nil {
			return err
		}
		target := root + ".zip"
		if err := upload.Archive(path, target); err != nil {
			return err
		}
		fmt.Fprintf(out, "Archived %s to %s\n", pkg.Descriptor()["name"], target)
	}

	fmt.Fprintln(out, paint(styles.success, "Your data is now live on Open Spending!"))
	return nil
}
