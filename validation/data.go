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

	"github.com/frictionlessdata/tableschema-go/csv"

	"github.com/OpenSpending-Clone/os-cli/frictionless"
)

// opens the data file at the given path (replaced in tests)
var dataSource = csv.FromFile

// written by some spreadsheet programs at the start of a UTF-8 file
const byteOrderMark = "\ufeff"

// Checks the data files of every resource in the given (previously checked)
// descriptor against the resource's schema, reading files relative to
// dataRoot. Resources are checked one at a time in descriptor order, and all
// issues are collected; ok is true only if there are none.
func CheckData(pkg *frictionless.DataPackage, dataRoot string) (ok bool, issues []Issue) {
	if pkg == nil {
		panic("validation.CheckData: nil descriptor")
	}
	issues = make([]Issue, 0)
	for _, res := range pkg.Resources {
		issues = append(issues, checkResourceData(res, dataRoot)...)
	}
	return len(issues) == 0, issues
}

// the per-run state for one schema field within one resource
type fieldCheck struct {
	field frictionless.FieldDefinition
	// index of the field's column in the header row
	column int
	// values seen so far, mapped to the row in which they first appeared
	// (only for unique fields)
	seen map[string]int
}

// checks the rows of a single resource, returning the issues found
func checkResourceData(res frictionless.DataResource, dataRoot string) []Issue {
	issues := make([]Issue, 0)
	report := func(kind IssueKind, field string, row int, format string, args ...any) {
		issues = append(issues, Issue{
			Kind:     kind,
			Resource: res.Name,
			Field:    field,
			Row:      row,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	table, err := csv.NewTable(dataSource(res.AbsPath(dataRoot)))
	if err != nil {
		report(ParseError, "", 0, "cannot read data file %q: %s", res.Path, err.Error())
		return issues
	}
	iter, err := table.Iter()
	if err != nil {
		report(ParseError, "", 0, "cannot read data file %q: %s", res.Path, err.Error())
		return issues
	}
	defer iter.Close()

	// the first record is the header row
	var headers []string
	if iter.Next() {
		headers = iter.Row()
	} else if err := iter.Err(); err != nil {
		report(ParseError, "", 0, "cannot read the header row of %q: %s", res.Path, err.Error())
		return issues
	}
	columns := make(map[string]int)
	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, byteOrderMark)
		}
		header = strings.TrimSpace(header)
		if _, found := columns[header]; !found {
			columns[header] = i
		}
	}

	// a single-field primary key is implicitly required and unique
	implied := ""
	if len(res.Schema.PrimaryKey) == 1 {
		implied = res.Schema.PrimaryKey[0]
	}

	checks := make([]*fieldCheck, 0, len(res.Schema.Fields))
	for _, field := range res.Schema.Fields {
		column, found := columns[field.Name]
		if !found {
			report(MissingField, field.Name, 0, "the column %q is not present in %s", field.Name, res.Path)
			continue
		}
		if field.Name == implied {
			field.Constraints.Required = true
			field.Constraints.Unique = true
		}
		check := &fieldCheck{field: field, column: column}
		if field.Constraints.Unique {
			check.seen = make(map[string]int)
		}
		checks = append(checks, check)
	}

	var keyColumns []int
	var seenKeys map[string]int
	if len(res.Schema.PrimaryKey) > 1 {
		for _, name := range res.Schema.PrimaryKey {
			if column, found := columns[name]; found {
				keyColumns = append(keyColumns, column)
			}
		}
		if len(keyColumns) == len(res.Schema.PrimaryKey) {
			seenKeys = make(map[string]int)
		}
	}

	row := 0
	for iter.Next() {
		row++
		values := iter.Row()
		for _, check := range checks {
			if issue, found := check.checkCell(res.Name, row, cell(values, check.column)); found {
				issues = append(issues, issue)
			}
		}
		if seenKeys != nil {
			key := make([]string, len(keyColumns))
			for i, column := range keyColumns {
				key[i] = strings.TrimSpace(cell(values, column))
			}
			joined := strings.Join(key, "\x1f")
			if first, found := seenKeys[joined]; found {
				report(ConstraintViolation, strings.Join(res.Schema.PrimaryKey, "+"), row,
					"the primary key (%s) repeats row %d", strings.Join(key, ", "), first)
			} else {
				seenKeys[joined] = row
			}
		}
	}
	if err := iter.Err(); err != nil {
		report(ParseError, "", row+1, "cannot read row: %s", err.Error())
	}
	return issues
}

// checks a single value, returning an issue and true if the value is invalid
func (check *fieldCheck) checkCell(resource string, row int, raw string) (Issue, bool) {
	field := check.field
	issue := Issue{Resource: resource, Field: field.Name, Row: row}

	value := strings.TrimSpace(raw)
	if value == "" {
		if field.Constraints.Required {
			issue.Kind = MissingField
			issue.Message = "a value is required"
			return issue, true
		}
		return issue, false
	}

	if err := checkValue(field.Type, field.Format, value); err != nil {
		issue.Kind = TypeMismatch
		issue.Message = err.Error()
		return issue, true
	}

	if len(field.Constraints.Enum) > 0 && !contains(field.Constraints.Enum, value) {
		issue.Kind = ConstraintViolation
		issue.Message = fmt.Sprintf("%q is not one of the permitted values (%s)", value,
			strings.Join(field.Constraints.Enum, ", "))
		return issue, true
	}

	if check.seen != nil {
		if first, found := check.seen[value]; found {
			issue.Kind = ConstraintViolation
			issue.Message = fmt.Sprintf("%q must be unique but already appears in row %d", value, first)
			return issue, true
		}
		check.seen[value] = row
	}
	return issue, false
}

// returns the value in the given column, or "" if the row is too short
func cell(values []string, column int) string {
	if column < len(values) {
		return values[column]
	}
	return ""
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
