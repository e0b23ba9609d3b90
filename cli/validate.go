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
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/OpenSpending-Clone/os-cli/validation"
)

// where to read about the fields an Open Spending data package requires
const RequiredFieldsUrl = "https://github.com/openspending/oscli-poc#open-spending-data-package"

// where to read about common schema errors and their solutions
const GuideUrl = "https://github.com/openspending/oscli-poc/blob/master/oscli/checkdata/guide.md"

const (
	msgPackageSuccess = "Congratulations, the data package looks good!"
	msgPackageError   = "While checking the data package, we found some issues:"
	msgRequiredFields = "Read more about required fields in Open Spending Data Packages here:"
	msgDataSuccess    = "\nCongratulations, the data looks good! You can now move on\n" +
		"to uploading your new data package to Open Spending!"
	msgContinue = "While checking the data, we found some issues\n" +
		"that need addressing. Shall we take a look?"
	msgContext = "IMPORTANT: Not all errors are necessarily because of\n" +
		"invalid data. It could be that the schema needs adjusting\n" +
		"in order to represent the data more accurately."
	msgGuide = "\nWould you like to see our short guide on common schema\n" +
		"errors and solutions? (Launches a web page in your browser)"
	msgEdit = "\nWould you like to edit the schema for this data now?\n" +
		"(Opens the file in your editor)"
	msgEndContinue = "\nThat is all for now. Once you have made changes to\n" +
		"your data and/or schema, try running the validation again."
	msgNotFound = "No data package descriptor (datapackage.json) was found at %s.\n" +
		"Give the path of a data package directory or of its descriptor."
)

// options shared by the validate subcommands
type validateOptions struct {
	FailOnError bool
	Interactive bool
}

// NewValidateCommand creates the validate command and its subcommands.
func NewValidateCommand() *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an Open Spending data package descriptor or data",
		Long: `Validate an Open Spending data package.

  package  checks the descriptor (datapackage.json) only
  data     checks the descriptor and, if it is sound, every row of data`,
	}
	cmd.PersistentFlags().BoolVar(&opts.FailOnError, "fail-on-error", false,
		"exit with a non-zero status if any issue is found")

	packageCmd := &cobra.Command{
		Use:   "package <path>",
		Short: "Validate a data package descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidatePackage(cmd, args[0], opts)
		},
	}

	dataCmd := &cobra.Command{
		Use:   "data <path>",
		Short: "Validate a data package descriptor and its data",
		Args:  cobra.ExactArgs(1),
		Example: `  # check a package and walk through any issues
  os validate data ./city-budget --interactive

  # fail a CI job on any issue
  os validate data ./city-budget --fail-on-error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateData(cmd, args[0], opts)
		},
	}
	dataCmd.Flags().BoolVar(&opts.Interactive, "interactive", false,
		"walk through any issues found (on a terminal)")

	cmd.AddCommand(packageCmd, dataCmd)
	return cmd
}

func runValidatePackage(cmd *cobra.Command, path string, opts *validateOptions) error {
	out := cmd.OutOrStdout()
	styles := newStyles(out)

	result, err := validation.New().ValidateDescriptor(path)
	if err != nil {
		return descriptorNotFound(out, styles, path, err)
	}
	if result.Passed() {
		fmt.Fprintln(out, paint(styles.success, msgPackageSuccess))
		return nil
	}
	fmt.Fprintln(out, paint(styles.failure, msgPackageError))
	fmt.Fprint(out, paint(styles.report, result.Report.Text()))
	fmt.Fprintln(out, msgRequiredFields, RequiredFieldsUrl)
	return failure(path, result, opts)
}

func runValidateData(cmd *cobra.Command, path string, opts *validateOptions) error {
	out := cmd.OutOrStdout()
	styles := newStyles(out)

	result, err := validation.Validate(path)
	if err != nil {
		return descriptorNotFound(out, styles, path, err)
	}
	if result.Passed() {
		fmt.Fprintln(out, paint(styles.success, msgDataSuccess))
		return nil
	}

	report := result.Report.Text()
	if opts.Interactive && isTerminal(cmd.InOrStdin()) {
		p := newPrompter(cmd.InOrStdin(), out)
		if p.confirm(styles.failure, msgContinue) {
			fmt.Fprint(out, paint(styles.report, report))
			fmt.Fprintln(out, paint(styles.notice, msgContext))
		}
		if p.confirm(styles.notice, msgGuide) {
			if err := openBrowser(GuideUrl); err != nil {
				slog.Warn(fmt.Sprintf("Couldn't open a browser: %s", err.Error()))
				fmt.Fprintln(out, GuideUrl)
			}
		}
		if p.confirm(styles.notice, msgEdit) {
			if descriptorPath, err := validation.ResolveDescriptor(path); err != nil {
				slog.Warn(fmt.Sprintf("Couldn't find the descriptor to edit: %s", err.Error()))
			} else if err := openEditor(descriptorPath); err != nil {
				slog.Warn(fmt.Sprintf("Couldn't run an editor: %s", err.Error()))
			}
		}
	} else {
		fmt.Fprint(out, paint(styles.report, report))
		fmt.Fprintln(out, paint(styles.notice, msgContext))
		fmt.Fprint(out, "Read the guide for help:\n\n")
		fmt.Fprintln(out, GuideUrl)
	}
	fmt.Fprintln(out, paint(styles.success, msgEndContinue))
	return failure(path, result, opts)
}

// prints guidance for a missing descriptor and returns the error
func descriptorNotFound(out io.Writer, styles styles, path string, err error) error {
	var notFound *validation.DescriptorNotFoundError
	if errors.As(err, &notFound) {
		fmt.Fprintln(out, paint(styles.failure, fmt.Sprintf(msgNotFound, path)))
	}
	return err
}

// returns an error for a failed validation if the caller asked for one
func failure(path string, result *validation.Result, opts *validateOptions) error {
	if opts.FailOnError {
		return &ValidationFailedError{Path: path, Issues: len(result.Report.Issues)}
	}
	return nil
}
