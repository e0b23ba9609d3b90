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

package validation

import (
	"strings"
)

// Renders the given issues as text, one line per issue, in the order given.
// An empty list renders as an empty string.
func BuildReport(issues []Issue) string {
	var b strings.Builder
	for _, issue := range issues {
		b.WriteString(issue.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// the outcome of a validation run: the issues found, in the order in which
// they were found
type Report struct {
	// true if no issues were found
	OK bool `json:"ok"`
	// the issues found (empty if OK)
	Issues []Issue `json:"issues"`
}

// creates a report holding its own copy of the given issues
func NewReport(issues []Issue) Report {
	copied := make([]Issue, len(issues))
	copy(copied, issues)
	return Report{
		OK:     len(copied) == 0,
		Issues: copied,
	}
}

// returns the number of issues of each kind in the report
func (r Report) Counts() map[IssueKind]int {
	counts := make(map[IssueKind]int)
	for _, issue := range r.Issues {
		counts[issue.Kind]++
	}
	return counts
}

// renders the report as text (see BuildReport)
func (r Report) Text() string {
	return BuildReport(r.Issues)
}
