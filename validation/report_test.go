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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildEmptyReport(t *testing.T) {
	assert.Equal(t, "", BuildReport(nil))
	assert.Equal(t, "", BuildReport([]Issue{}))
}

func TestBuildReport(t *testing.T) {
	assert := assert.New(t)
	issues := []Issue{
		{Kind: SchemaMalformed, Message: "datapackage.json is not valid JSON"},
		{Kind: MissingField, Field: "resources", Message: "the data package has no resources"},
		{Kind: MissingField, Resource: "payments", Field: "schema", Message: "the resource has no schema"},
		{Kind: TypeMismatch, Resource: "payments", Field: "amount", Row: 4, Message: `"abc" is not a number`},
		{Kind: ParseError, Resource: "payments", Row: 7, Message: "cannot read row"},
	}
	assert.Equal(`SchemaMalformed: datapackage.json is not valid JSON
MissingField: resources — the data package has no resources
MissingField: payments.schema — the resource has no schema
TypeMismatch: payments.amount[4] — "abc" is not a number
ParseError: payments[7] — cannot read row
`, BuildReport(issues))
}

func TestNewReportCopiesIssues(t *testing.T) {
	assert := assert.New(t)
	issues := []Issue{{Kind: TypeMismatch, Resource: "r", Field: "f", Row: 1, Message: "bad"}}
	report := NewReport(issues)
	issues[0].Message = "changed"
	assert.False(report.OK)
	assert.Equal("bad", report.Issues[0].Message)
	assert.Equal(map[IssueKind]int{TypeMismatch: 1}, report.Counts())
	assert.True(NewReport(nil).OK)
}

func TestReportJSON(t *testing.T) {
	assert := assert.New(t)
	report := NewReport([]Issue{{Kind: ConstraintViolation, Resource: "r", Field: "f", Row: 2, Message: "dup"}})
	data, err := json.Marshal(report)
	assert.Nil(err)
	assert.JSONEq(`{"ok": false, "issues": [
  {"kind": "ConstraintViolation", "resource": "r", "field": "f", "row": 2, "message": "dup"}
]}`, string(data))

	var decoded Report
	assert.Nil(json.Unmarshal(data, &decoded))
	assert.Equal(report, decoded)
}

func TestIssueKindNames(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("ParseError", ParseError.String())
	assert.Equal("IssueKind(42)", IssueKind(42).String())
	var kind IssueKind
	assert.NotNil(kind.UnmarshalText([]byte("Bogus")))
}
