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

package upload

import (
	"fmt"
	"strings"

	"github.com/OpenSpending-Clone/os-cli/validation"
)

// indicates that a redirect would downgrade a connection from HTTPS to HTTP
type DowngradedRedirectError struct {
	Endpoint string
}

func (e DowngradedRedirectError) Error() string {
	return fmt.Sprintf("Refusing to follow an insecure redirect to %s", e.Endpoint)
}

// indicates that the given path does not hold a loadable data package
type NotDataPackageError struct {
	Path, Message string
}

func (e NotDataPackageError) Error() string {
	return fmt.Sprintf("%s is not a data package: %s", e.Path, e.Message)
}

// indicates that a data package failed validation and cannot be uploaded
type InvalidPackageError struct {
	Path   string
	Report validation.Report
}

func (e InvalidPackageError) Error() string {
	return fmt.Sprintf("The data package at %s has %d issue(s):\n%s", e.Path, len(e.Report.Issues),
		strings.TrimSuffix(e.Report.Text(), "\n"))
}

// indicates that the Open Spending API or its storage rejected a request
type StorageError struct {
	Url     string
	Status  int
	Message string
}

func (e StorageError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("Storage request to %s failed (%d): %s", e.Url, e.Status, e.Message)
	}
	return fmt.Sprintf("Storage request to %s failed: %s", e.Url, e.Message)
}
