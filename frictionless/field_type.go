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

package frictionless

// the declared type of a table schema field
type FieldType string

const (
	StringType   FieldType = "string"
	NumberType   FieldType = "number"
	IntegerType  FieldType = "integer"
	BooleanType  FieldType = "boolean"
	DateType     FieldType = "date"
	DateTimeType FieldType = "datetime"
	YearType     FieldType = "year"
	AnyType      FieldType = "any"
)

// all field types understood by the validator, in documentation order
var FieldTypes = []FieldType{
	StringType,
	NumberType,
	IntegerType,
	BooleanType,
	DateType,
	DateTimeType,
	YearType,
	AnyType,
}

// returns true if the field type is one of the supported types
func (t FieldType) IsKnown() bool {
	for _, known := range FieldTypes {
		if t == known {
			return true
		}
	}
	return false
}
