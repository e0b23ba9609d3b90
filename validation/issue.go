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
	"fmt"
	"strings"
)

// the kind of problem described by an Issue
type IssueKind int

const (
	ParseError          IssueKind = iota // a descriptor or data file is unreadable or malformed
	SchemaMalformed                      // the descriptor is structurally invalid
	MissingField                         // a required field or value is absent
	TypeMismatch                         // a value cannot be read as its declared type
	ConstraintViolation                  // a value or declaration breaks a declared constraint
)

var issueKindNames = [...]string{
	ParseError:          "ParseError",
	SchemaMalformed:     "SchemaMalformed",
	MissingField:        "MissingField",
	TypeMismatch:        "TypeMismatch",
	ConstraintViolation: "ConstraintViolation",
}

func (k IssueKind) String() string {
	if k < 0 || int(k) >= len(issueKindNames) {
		return fmt.Sprintf("IssueKind(%d)", int(k))
	}
	return issueKindNames[k]
}

// issue kinds are encoded by name in JSON
func (k IssueKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(issueKindNames) {
		return nil, fmt.Errorf("invalid issue kind: %d", int(k))
	}
	return []byte(issueKindNames[k]), nil
}

func (k *IssueKind) UnmarshalText(text []byte) error {
	for i, name := range issueKindNames {
		if name == string(text) {
			*k = IssueKind(i)
			return nil
		}
	}
	return fmt.Errorf("invalid issue kind: %q", string(text))
}

// a single problem detected while validating a data package
type Issue struct {
	// the kind of problem
	Kind IssueKind `json:"kind"`
	// the name of the resource concerned (empty for package-level issues)
	Resource string `json:"resource,omitempty"`
	// the name or path of the field concerned (empty for resource-level issues)
	Field string `json:"field,omitempty"`
	// the 1-based data row concerned (0 if the issue is not tied to a row)
	Row int `json:"row,omitempty"`
	// a human-readable explanation
	Message string `json:"message"`
}

// returns the location of the issue as <resource>.<field>[<row>], omitting
// any segment that doesn't apply
func (i Issue) Location() string {
	var b strings.Builder
	b.WriteString(i.Resource)
	if i.Field != "" {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(i.Field)
	}
	if i.Row > 0 {
		fmt.Fprintf(&b, "[%d]", i.Row)
	}
	return b.String()
}

// renders the issue as a single report line
func (i Issue) String() string {
	location := i.Location()
	if location == "" {
		return fmt.Sprintf("%s: %s", i.Kind, i.Message)
	}
	return fmt.Sprintf("%s: %s — %s", i.Kind, location, i.Message)
}
