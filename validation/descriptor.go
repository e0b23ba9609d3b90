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
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/OpenSpending-Clone/os-cli/frictionless"
)

// Given the path of a data package directory or of its descriptor file,
// returns the path of the descriptor file, or a DescriptorNotFoundError if no
// descriptor exists there.
func ResolveDescriptor(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &DescriptorNotFoundError{Path: path, Err: err}
	}
	if info.IsDir() {
		path = filepath.Join(path, frictionless.DescriptorFile)
		info, err = os.Stat(path)
		if err != nil {
			return "", &DescriptorNotFoundError{Path: path, Err: err}
		}
		if info.IsDir() {
			return "", &DescriptorNotFoundError{Path: path}
		}
	}
	return path, nil
}

// Checks the descriptor of the data package at the given path (a package
// directory or a descriptor file). All problems found are returned as issues,
// and ok is true only if there are none. The parsed descriptor is returned
// whenever the document is well-formed JSON, even if it has issues. A missing
// or unreadable descriptor produces a DescriptorNotFoundError and no issues.
func CheckDescriptor(path string) (ok bool, pkg *frictionless.DataPackage, issues []Issue, err error) {
	descriptorPath, err := ResolveDescriptor(path)
	if err != nil {
		return false, nil, nil, err
	}
	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		return false, nil, nil, &DescriptorNotFoundError{Path: descriptorPath, Err: err}
	}

	var document any
	if err := json.Unmarshal(data, &document); err != nil {
		return false, nil, []Issue{{
			Kind:    SchemaMalformed,
			Message: fmt.Sprintf("%s is not valid JSON: %s", filepath.Base(descriptorPath), err.Error()),
		}}, nil
	}
	descriptor, isObject := document.(map[string]any)
	if !isObject {
		return false, nil, []Issue{{
			Kind:    SchemaMalformed,
			Message: fmt.Sprintf("%s must contain a JSON object", filepath.Base(descriptorPath)),
		}}, nil
	}

	checker := descriptorChecker{root: filepath.Dir(descriptorPath)}
	pkg = checker.check(descriptor)
	return len(checker.issues) == 0, pkg, checker.issues, nil
}

// accumulates issues while walking a decoded descriptor
type descriptorChecker struct {
	// directory containing the descriptor (for schema references)
	root   string
	issues []Issue
}

func (c *descriptorChecker) report(kind IssueKind, resource, field, format string, args ...any) {
	c.issues = append(c.issues, Issue{
		Kind:     kind,
		Resource: resource,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *descriptorChecker) check(descriptor map[string]any) *frictionless.DataPackage {
	c.loadSchemas(descriptor)
	c.checkStructure(descriptor)

	pkg := &frictionless.DataPackage{
		Resources: make([]frictionless.DataResource, 0),
	}
	pkg.Name, _ = descriptor["name"].(string)
	pkg.Title, _ = descriptor["title"].(string)
	pkg.Description, _ = descriptor["description"].(string)
	pkg.Author, _ = descriptor["author"].(string)

	resources, _ := descriptor["resources"].([]any)
	names := make(map[string]bool)
	for i, resource := range resources {
		if res, ok := c.checkResource(i, resource, names); ok {
			pkg.Resources = append(pkg.Resources, res)
		}
	}

	if mapping, ok := descriptor["mapping"].(map[string]any); ok {
		pkg.Mapping = c.checkMapping(mapping, pkg)
	}
	return pkg
}

// replaces each schema reference with the table schema stored in that file
func (c *descriptorChecker) loadSchemas(descriptor map[string]any) {
	resources, _ := descriptor["resources"].([]any)
	for i, resource := range resources {
		res, ok := resource.(map[string]any)
		if !ok {
			continue
		}
		ref, isRef := res["schema"].(string)
		if !isRef {
			continue
		}
		schema, err := c.loadSchema(ref)
		if err != nil {
			c.report(ParseError, resourceLabel(res, i), "schema", "cannot load schema %q: %s", ref, err.Error())
			continue
		}
		res["schema"] = schema
	}
}

// reads a table schema stored in its own file within the package
func (c *descriptorChecker) loadSchema(ref string) (any, error) {
	if !filepath.IsLocal(filepath.FromSlash(ref)) {
		return nil, fmt.Errorf("schema files must be inside the data package directory")
	}
	data, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(ref)))
	if err != nil {
		return nil, err
	}
	var schema any
	err = json.Unmarshal(data, &schema)
	return schema, err
}

// unnamed resources are labelled by position
func resourceLabel(res map[string]any, i int) string {
	if name, ok := res["name"].(string); ok && name != "" {
		return name
	}
	return fmt.Sprintf("resources[%d]", i)
}

// gathers a resource entry and checks its name against the other resources
// and its path against the package directory
func (c *descriptorChecker) checkResource(i int, value any, names map[string]bool) (frictionless.DataResource, bool) {
	descriptor, ok := value.(map[string]any)
	if !ok {
		return frictionless.DataResource{}, false
	}
	label := resourceLabel(descriptor, i)
	res := frictionless.DataResource{Name: label}

	if name, ok := descriptor["name"].(string); ok && name != "" {
		if names[name] {
			c.report(ConstraintViolation, label, "name", "another resource is already named %q", name)
		}
		names[name] = true
	}

	if path, ok := descriptor["path"].(string); ok && path != "" {
		res.Path = path
		if strings.Contains(path, "://") {
			c.report(ConstraintViolation, label, "path", "remote data (%s) cannot be validated", path)
		} else if !filepath.IsLocal(filepath.FromSlash(path)) {
			c.report(ConstraintViolation, label, "path",
				"%q must be a relative path inside the data package directory", path)
		}
	}

	res.Title, _ = descriptor["title"].(string)
	res.MediaType, _ = descriptor["mediatype"].(string)
	res.Format, _ = descriptor["format"].(string)
	res.Encoding, _ = descriptor["encoding"].(string)

	if schema, ok := descriptor["schema"].(map[string]any); ok {
		res.Schema = c.checkSchema(label, schema)
	}
	return res, true
}

func (c *descriptorChecker) checkSchema(label string, schema map[string]any) frictionless.TableSchema {
	var ts frictionless.TableSchema
	fields, _ := schema["fields"].([]any)
	seen := make(map[string]bool)
	for _, field := range fields {
		if fd, ok := c.checkField(label, field, seen); ok {
			ts.Fields = append(ts.Fields, fd)
		}
	}

	if value, found := schema["primaryKey"]; found {
		ts.PrimaryKey = c.checkPrimaryKey(label, value, ts)
	}
	return ts
}

// checks a single field definition, returning it and true if it can be used
// to check data
func (c *descriptorChecker) checkField(label string, value any, seen map[string]bool) (frictionless.FieldDefinition, bool) {
	descriptor, _ := value.(map[string]any)
	name, ok := descriptor["name"].(string)
	if !ok || name == "" {
		return frictionless.FieldDefinition{}, false
	}
	field := frictionless.FieldDefinition{Name: name, Type: frictionless.StringType}
	usable := !seen[name]
	if !usable {
		c.report(ConstraintViolation, label, name, "the field %q is declared more than once", name)
	}
	seen[name] = true

	if v, found := descriptor["type"]; found {
		typeName, _ := v.(string)
		if !frictionless.FieldType(typeName).IsKnown() {
			return field, false
		}
		field.Type = frictionless.FieldType(typeName)
	}

	if format, ok := descriptor["format"].(string); ok {
		if err := checkFormat(field.Type, format); err != nil {
			c.report(ConstraintViolation, label, name, "%s", err.Error())
		} else {
			field.Format = format
		}
	}
	field.Title, _ = descriptor["title"].(string)

	if constraints, ok := descriptor["constraints"].(map[string]any); ok {
		field.Constraints = c.checkConstraints(label, field, constraints)
	}
	return field, usable
}

// enum values must be valid values of the field's type
func (c *descriptorChecker) checkConstraints(label string, field frictionless.FieldDefinition, constraints map[string]any) frictionless.Constraints {
	var cons frictionless.Constraints
	cons.Required, _ = constraints["required"].(bool)
	cons.Unique, _ = constraints["unique"].(bool)
	values, _ := constraints["enum"].([]any)
	for _, ev := range values {
		s, ok := enumString(ev)
		if !ok {
			continue
		}
		if err := checkValue(field.Type, field.Format, s); err != nil {
			c.report(ConstraintViolation, label, field.Name, "enum value %q is not a valid %s", s, field.Type)
			continue
		}
		cons.Enum = append(cons.Enum, s)
	}
	return cons
}

// the primary key may be a single field name or an array of them, each of
// which must be declared by the schema
func (c *descriptorChecker) checkPrimaryKey(label string, value any, ts frictionless.TableSchema) []string {
	var names []string
	switch v := value.(type) {
	case string:
		names = []string{v}
	case []any:
		for _, element := range v {
			name, ok := element.(string)
			if !ok {
				return nil
			}
			names = append(names, name)
		}
	}
	for _, name := range names {
		if _, found := ts.Field(name); !found {
			c.report(ConstraintViolation, label, "schema.primaryKey", "the primary key refers to an undeclared field %q", name)
			return nil
		}
	}
	return names
}

// checks the Open Spending model: every measure must refer to a numeric field
// declared by one of the package's resources
func (c *descriptorChecker) checkMapping(mapping map[string]any, pkg *frictionless.DataPackage) *frictionless.Mapping {
	result := &frictionless.Mapping{}
	measures, ok := mapping["measures"].(map[string]any)
	if !ok {
		return result
	}

	names := make([]string, 0, len(measures))
	for name := range measures {
		names = append(names, name)
	}
	sort.Strings(names)

	result.Measures = make(map[string]frictionless.Measure)
	for _, name := range names {
		label := "mapping.measures." + name
		descriptor, _ := measures[name].(map[string]any)
		source, ok := descriptor["source"].(string)
		if !ok || source == "" {
			continue
		}
		measure := frictionless.Measure{Source: source}
		measure.Currency, _ = descriptor["currency"].(string)
		result.Measures[name] = measure

		field, found := findField(pkg, source)
		if !found {
			c.report(ConstraintViolation, "", label, "the measure refers to an undeclared field %q", source)
		} else if field.Type != frictionless.NumberType && field.Type != frictionless.IntegerType {
			c.report(ConstraintViolation, "", label, "the measure's field %q must be a number or integer, not %s",
				source, field.Type)
		}
	}
	return result
}

func findField(pkg *frictionless.DataPackage, name string) (frictionless.FieldDefinition, bool) {
	for _, res := range pkg.Resources {
		if field, found := res.Schema.Field(name); found {
			return field, true
		}
	}
	return frictionless.FieldDefinition{}, false
}

// enum values are compared as strings
func enumString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

func fieldTypeList() string {
	names := make([]string, len(frictionless.FieldTypes))
	for i, fieldType := range frictionless.FieldTypes {
		names[i] = string(fieldType)
	}
	return strings.Join(names, ", ")
}
