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
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"

	"github.com/OpenSpending-Clone/os-cli/frictionless"
)

// Each declared field type has exactly one validator here. A validator
// receives a trimmed, non-empty value and returns nil if the value is a valid
// instance of the type, or an error explaining why it isn't.

// default Go layouts for date and datetime fields (ISO 8601)
const (
	defaultDateLayout     = "2006-01-02"
	defaultDateTimeLayout = time.RFC3339
)

// layouts tried in turn for date/datetime fields with the "any" format
var anyDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"02.01.2006",
	"2 January 2006",
	"January 2, 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// the literals accepted for boolean fields
var (
	trueValues  = []string{"true", "True", "TRUE", "1"}
	falseValues = []string{"false", "False", "FALSE", "0"}
)

// checks that the given value is a valid instance of the given field type,
// using the given type-specific format
func checkValue(fieldType frictionless.FieldType, format, value string) error {
	switch fieldType {
	case frictionless.StringType:
		return checkString(value, format)
	case frictionless.NumberType:
		return checkNumber(value)
	case frictionless.IntegerType:
		return checkInteger(value)
	case frictionless.BooleanType:
		return checkBoolean(value)
	case frictionless.DateType:
		return checkTime(value, format, defaultDateLayout, "date")
	case frictionless.DateTimeType:
		return checkTime(value, format, defaultDateTimeLayout, "datetime")
	case frictionless.YearType:
		return checkYear(value)
	case frictionless.AnyType:
		return nil
	}
	return fmt.Errorf("unsupported field type %q", string(fieldType))
}

// checks that the given format is meaningful for the given field type
func checkFormat(fieldType frictionless.FieldType, format string) error {
	if format == "" || format == "default" {
		return nil
	}
	switch fieldType {
	case frictionless.StringType:
		switch format {
		case "email", "uri", "uuid":
			return nil
		}
		return fmt.Errorf("unsupported string format %q (expected email, uri or uuid)", format)
	case frictionless.DateType, frictionless.DateTimeType:
		if format == "any" {
			return nil
		}
		if _, err := strftime.Layout(strings.TrimPrefix(format, "fmt:")); err != nil {
			return fmt.Errorf("invalid %s format %q: %s", fieldType, format, err.Error())
		}
		return nil
	}
	return fmt.Errorf("%s fields take no format (got %q)", fieldType, format)
}

func checkString(value, format string) error {
	switch format {
	case "email":
		address, err := mail.ParseAddress(value)
		if err != nil || address.Address != value {
			return fmt.Errorf("%q is not an email address", value)
		}
	case "uri":
		u, err := url.ParseRequestURI(value)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("%q is not a URI", value)
		}
	case "uuid":
		if _, err := uuid.Parse(value); err != nil {
			return fmt.Errorf("%q is not a UUID", value)
		}
	}
	return nil
}

func checkNumber(value string) error {
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return fmt.Errorf("%q is not a number", value)
	}
	return nil
}

func checkInteger(value string) error {
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		return fmt.Errorf("%q is not an integer", value)
	}
	return nil
}

func checkBoolean(value string) error {
	for _, literal := range trueValues {
		if value == literal {
			return nil
		}
	}
	for _, literal := range falseValues {
		if value == literal {
			return nil
		}
	}
	return fmt.Errorf("%q is not a boolean (expected true/false or 1/0)", value)
}

func checkYear(value string) error {
	digits := strings.TrimPrefix(value, "-")
	if len(digits) != 4 {
		return fmt.Errorf("%q is not a four-digit year", value)
	}
	if _, err := strconv.Atoi(digits); err != nil {
		return fmt.Errorf("%q is not a four-digit year", value)
	}
	return nil
}

// checks date and datetime values against the field's format: the default
// ISO layout, any of a set of common layouts, or a strftime pattern
func checkTime(value, format, defaultLayout, typeName string) error {
	switch format {
	case "", "default":
		if _, err := time.Parse(defaultLayout, value); err != nil {
			return fmt.Errorf("%q is not a %s in the format %s", value, typeName, defaultLayout)
		}
		return nil
	case "any":
		for _, layout := range anyDateLayouts {
			if _, err := time.Parse(layout, value); err == nil {
				return nil
			}
		}
		return fmt.Errorf("%q is not a recognizable %s", value, typeName)
	}
	pattern := strings.TrimPrefix(format, "fmt:")
	if _, err := strftime.Layout(pattern); err != nil {
		return fmt.Errorf("invalid %s format %q: %s", typeName, format, err.Error())
	}
	if _, err := strftime.Parse(pattern, value); err != nil {
		return fmt.Errorf("%q is not a %s in the format %s", value, typeName, pattern)
	}
	return nil
}
