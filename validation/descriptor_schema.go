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
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/OpenSpending-Clone/os-cli/frictionless"
)

// names of packages and resources must be lowercase and URL-friendly
const namePattern = `^[a-z0-9._-]*$`

const (
	csvPattern  = `^(?i)csv$`
	utf8Pattern = `^(?i)utf-?8$`
)

// friendlier messages for values that fail one of the patterns above
var patternMessages = map[string]string{
	namePattern: "%q may only contain lowercase letters, digits, '.', '_' and '-'",
	csvPattern:  "only CSV resources are supported (got %v)",
	utf8Pattern: "only UTF-8 data is supported (got %v)",
}

// the structure every descriptor must have; rules involving more than one
// value are checked by descriptorChecker
const descriptorSchemaSource = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "resources"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "pattern": %[1]q},
    "title": {"type": "string"},
    "resources": {"type": "array", "items": {"$ref": "#/definitions/resource"}},
    "mapping": {
      "type": "object",
      "properties": {
        "measures": {
          "type": "object",
          "additionalProperties": {
            "type": "object",
            "required": ["source"],
            "properties": {
              "source": {"type": "string", "minLength": 1},
              "currency": {"type": "string"}
            }
          }
        }
      }
    }
  },
  "definitions": {
    "resource": {
      "type": "object",
      "required": ["name", "path", "schema"],
      "properties": {
        "name": {"type": "string", "minLength": 1, "pattern": %[1]q},
        "path": {"type": "string", "minLength": 1},
        "format": {"type": "string", "pattern": %[2]q},
        "encoding": {"type": "string", "pattern": %[3]q},
        "schema": {
          "type": ["object", "string"],
          "required": ["fields"],
          "properties": {
            "fields": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/field"}},
            "primaryKey": {"type": ["string", "array"], "items": {"type": "string"}}
          }
        }
      }
    },
    "field": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "type": {"enum": %[4]s},
        "format": {"type": "string"},
        "title": {"type": "string"},
        "constraints": {
          "type": "object",
          "properties": {
            "required": {"type": "boolean"},
            "unique": {"type": "boolean"},
            "enum": {"type": "array", "minItems": 1, "items": {"type": ["string", "number", "boolean"]}}
          }
        }
      }
    }
  }
}`

var descriptorSchema = compileDescriptorSchema()

func compileDescriptorSchema() *gojsonschema.Schema {
	fieldTypes, err := json.Marshal(frictionless.FieldTypes)
	if err != nil {
		panic(err)
	}
	source := fmt.Sprintf(descriptorSchemaSource, namePattern, csvPattern, utf8Pattern, fieldTypes)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(err)
	}
	return schema
}

// validates the structure of a decoded descriptor, reporting missing
// properties as MissingField and every other problem as ConstraintViolation
func (c *descriptorChecker) checkStructure(descriptor map[string]any) {
	result, err := descriptorSchema.Validate(gojsonschema.NewGoLoader(descriptor))
	if err != nil {
		c.report(SchemaMalformed, "", "", "cannot check the descriptor: %s", err.Error())
		return
	}

	// errors arrive in map order, so they are reported by path
	type located struct {
		path  []string
		issue Issue
	}
	found := make([]located, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		path := strings.TrimPrefix(strings.TrimPrefix(e.Context().String(), "(root)"), ".")
		kind := ConstraintViolation
		if e.Type() == "required" {
			kind = MissingField
			property, _ := e.Details()["property"].(string)
			path = joinPath(path, property)
		}
		resource, field, detail := locate(descriptor, path)
		message := schemaMessage(e)
		if detail != "" && kind != MissingField {
			message = detail + ": " + message
		}
		found = append(found, located{
			path:  strings.Split(path, "."),
			issue: Issue{Kind: kind, Resource: resource, Field: field, Message: message},
		})
	}
	sort.SliceStable(found, func(i, j int) bool {
		return comparePaths(found[i].path, found[j].path) < 0
	})
	for _, f := range found {
		c.issues = append(c.issues, f.issue)
	}
}

// orders dotted paths segment by segment, comparing array indices as numbers
func comparePaths(a, b []string) int {
	for k := 0; k < len(a) && k < len(b); k++ {
		if a[k] == b[k] {
			continue
		}
		m, errM := strconv.Atoi(a[k])
		n, errN := strconv.Atoi(b[k])
		if errM == nil && errN == nil {
			return m - n
		}
		return strings.Compare(a[k], b[k])
	}
	return len(a) - len(b)
}

func schemaMessage(e gojsonschema.ResultError) string {
	switch e.Type() {
	case "pattern":
		if format, found := patternMessages[fmt.Sprint(e.Details()["pattern"])]; found {
			return fmt.Sprintf(format, e.Value())
		}
	case "enum":
		return fmt.Sprintf("%v is not allowed (expected one of %s)", e.Value(), fieldTypeList())
	}
	return e.Description()
}

// Translates a dotted schema path into the resource and field it concerns.
// Resources and fields are named when they have a name and numbered when
// they don't. Anything below a field definition is returned as detail.
func locate(descriptor map[string]any, path string) (resource, field, detail string) {
	parts := strings.Split(path, ".")
	if len(parts) < 2 || parts[0] != "resources" {
		return "", path, ""
	}
	i, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", path, ""
	}
	resources, _ := descriptor["resources"].([]any)
	res, _ := elementAt(resources, i).(map[string]any)
	resource = resourceLabel(res, i)
	rest := parts[2:]
	if len(rest) < 3 || rest[0] != "schema" || rest[1] != "fields" {
		return resource, strings.Join(rest, "."), ""
	}
	j, err := strconv.Atoi(rest[2])
	if err != nil {
		return resource, strings.Join(rest, "."), ""
	}
	schema, _ := res["schema"].(map[string]any)
	fields, _ := schema["fields"].([]any)
	fd, _ := elementAt(fields, j).(map[string]any)
	field = fmt.Sprintf("fields[%d]", j)
	if name, ok := fd["name"].(string); ok && name != "" {
		field = name
	}
	if len(rest) > 3 {
		detail = strings.Join(rest[3:], ".")
	}
	return resource, field, detail
}

func elementAt(values []any, i int) any {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

func joinPath(path, property string) string {
	if path == "" {
		return property
	}
	return path + "." + property
}
