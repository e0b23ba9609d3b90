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
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const paymentsDescriptor = `{
  "name": "city-budget",
  "title": "City budget",
  "resources": [
    {
      "name": "payments",
      "path": "data/payments.csv",
      "schema": {
        "fields": [
          {"name": "amount", "type": "number", "constraints": {"required": true}},
          {"name": "date", "type": "date"}
        ]
      }
    }
  ],
  "mapping": {"measures": {"amount": {"source": "amount", "currency": "EUR"}}}
}`

func TestDecodeDescriptor(t *testing.T) {
	assert := assert.New(t)

	var pkg DataPackage
	err := json.Unmarshal([]byte(paymentsDescriptor), &pkg)
	assert.Nil(err)
	assert.Equal("city-budget", pkg.Name)
	assert.Equal([]string{"payments"}, pkg.ResourceNames())

	res, found := pkg.Resource("payments")
	assert.True(found)
	assert.Equal(filepath.Join("/pkg", "data", "payments.csv"), res.AbsPath("/pkg"))

	amount, found := res.Schema.Field("amount")
	assert.True(found)
	assert.Equal(NumberType, amount.Type)
	assert.True(amount.Constraints.Required)
	_, found = res.Schema.Field("nope")
	assert.False(found)

	assert.Equal("amount", pkg.Mapping.Measures["amount"].Source)

	_, found = pkg.Resource("receipts")
	assert.False(found)
}

func TestFieldTypeIsKnown(t *testing.T) {
	assert := assert.New(t)
	for _, fieldType := range FieldTypes {
		assert.True(fieldType.IsKnown(), "%s should be known", fieldType)
	}
	assert.False(FieldType("geopoint").IsKnown())
	assert.False(FieldType("").IsKnown())
}
