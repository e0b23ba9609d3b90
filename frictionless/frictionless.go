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

import (
	"path/filepath"
)

// the conventional name of a data package's descriptor file
const DescriptorFile = "datapackage.json"

// an Open Spending data package: a Frictionless data package whose resources
// are tabular (CSV) files described by table schemas
// (https://specs.frictionlessdata.io/data-package/)
type DataPackage struct {
	// the name of the data package (lowercase, URL-friendly)
	Name string `json:"name"`
	// a title or one sentence description for the data package (optional)
	Title string `json:"title,omitempty"`
	// a Markdown description of the data package (optional)
	Description string `json:"description,omitempty"`
	// the author of the data package (optional)
	Author string `json:"author,omitempty"`
	// an array of string keywords to assist users searching for the data package
	Keywords []string `json:"keywords,omitempty"`
	// a list identifying the license or licenses under which the package is
	// managed (optional)
	Licenses []DataLicense `json:"licenses,omitempty"`
	// a list identifying the sources for the package (optional)
	Sources []DataSource `json:"sources,omitempty"`
	// a list of resources that belong to the package
	Resources []DataResource `json:"resources"`
	// the Open Spending model mapping measures and dimensions onto fields
	// (optional)
	Mapping *Mapping `json:"mapping,omitempty"`
}

// returns the names of the package's resources, in descriptor order
func (p DataPackage) ResourceNames() []string {
	names := make([]string, len(p.Resources))
	for i, res := range p.Resources {
		names[i] = res.Name
	}
	return names
}

// returns the resource with the given name and true, or false if the package
// has no such resource
func (p DataPackage) Resource(name string) (DataResource, bool) {
	for _, res := range p.Resources {
		if res.Name == name {
			return res, true
		}
	}
	return DataResource{}, false
}

// a Frictionless tabular data resource: one CSV file within the package
// (https://specs.frictionlessdata.io/tabular-data-resource/)
type DataResource struct {
	// the name of the resource, unique within its package
	Name string `json:"name"`
	// a relative path to the resource's file within the data package directory
	Path string `json:"path"`
	// a title or label for the resource (optional)
	Title string `json:"title,omitempty"`
	// indicates the format of the resource's file (optional, default: csv)
	Format string `json:"format,omitempty"`
	// the mediatype/mimetype of the resource (optional, e.g. "text/csv")
	MediaType string `json:"mediatype,omitempty"`
	// the character encoding for the resource's file (optional, default: UTF-8)
	Encoding string `json:"encoding,omitempty"`
	// the table schema describing the resource's columns
	Schema TableSchema `json:"schema"`
}

// returns the absolute path of the resource's file given the root directory
// of its package
func (res DataResource) AbsPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(res.Path))
}

// a Frictionless table schema (https://specs.frictionlessdata.io/table-schema/)
type TableSchema struct {
	// the ordered sequence of fields (columns) in the table
	Fields []FieldDefinition `json:"fields"`
	// the names of the fields composing the table's primary key (optional)
	PrimaryKey []string `json:"primaryKey,omitempty"`
}

// returns the field with the given name and true, or false if the schema
// declares no such field
func (s TableSchema) Field(name string) (FieldDefinition, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldDefinition{}, false
}

// a single column within a table schema
type FieldDefinition struct {
	// the name of the field, unique within its schema
	Name string `json:"name"`
	// the declared type of the field's values (default: string)
	Type FieldType `json:"type,omitempty"`
	// a type-specific format (e.g. "%d/%m/%Y" for dates, "default" otherwise)
	Format string `json:"format,omitempty"`
	// a human-readable title for the field (optional)
	Title string `json:"title,omitempty"`
	// restrictions on the field's values
	Constraints Constraints `json:"constraints,omitempty"`
}

// restrictions on the values of a field
type Constraints struct {
	// true if every row must supply a value for the field
	Required bool `json:"required,omitempty"`
	// true if no two rows may share a value for the field
	Unique bool `json:"unique,omitempty"`
	// the permitted values for the field, if restricted (optional)
	Enum []string `json:"enum,omitempty"`
}

// information about the source of a data package
type DataSource struct {
	// a descriptive title for the source
	Title string `json:"title"`
	// a URI or relative path pointing to the source (optional)
	Path string `json:"path,omitempty"`
	// an email address identifying a contact associated with the source (optional)
	Email string `json:"email,omitempty"`
}

// information about a license associated with a data package
type DataLicense struct {
	// the abbreviated name of the license
	Name string `json:"name"`
	// a URI or relative path at which the license text may be retrieved
	Path string `json:"path,omitempty"`
	// the descriptive title of the license (optional)
	Title string `json:"title,omitempty"`
}

// the Open Spending model, which maps fiscal concepts onto resource fields
type Mapping struct {
	// measures (monetary amounts), keyed by measure name
	Measures map[string]Measure `json:"measures,omitempty"`
}

// an Open Spending measure: a numeric field holding monetary amounts
type Measure struct {
	// the name of the field holding the measure's values
	Source string `json:"source"`
	// the ISO 4217 currency code for the measure (optional)
	Currency string `json:"currency,omitempty"`
}
