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

// This package contains testing utilities for the Open Spending CLI.
package ostest

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Enables DEBUG log messages for the CLI's structured log (slog).
func EnableDebugLogging() {
	logLevel := new(slog.LevelVar)
	logLevel.Set(slog.LevelDebug)
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))
}

// Writes a data package into a fresh temporary directory (removed when the
// test completes) and returns the directory's path. The descriptor is written
// to datapackage.json unless it's empty, and each entry in files is written
// to its (slash-separated) path relative to the directory.
func WritePackage(t testing.TB, descriptor string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if descriptor != "" {
		WriteFile(t, dir, "datapackage.json", descriptor)
	}
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	return dir
}

// Writes a file with the given content to the given slash-separated path
// within dir, creating any intermediate directories.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// A descriptor for a small, valid budget package with a single resource,
// "payments", whose data lives in payments.csv.
const PaymentsDescriptor = `{
  "name": "city-budget",
  "title": "City Budget",
  "resources": [
    {
      "name": "payments",
      "path": "payments.csv",
      "format": "csv",
      "schema": {
        "fields": [
          {"name": "id", "type": "integer"},
          {"name": "amount", "type": "number", "constraints": {"required": true}},
          {"name": "date", "type": "date", "constraints": {"required": true}}
        ],
        "primaryKey": "id"
      }
    }
  ],
  "mapping": {
    "measures": {
      "amount": {"source": "amount", "currency": "EUR"}
    }
  }
}`

// data matching PaymentsDescriptor
const PaymentsCSV = `id,amount,date
1,100.50,2024-01-15
2,250,2024-02-01
3,75.25,2024-03-10
`
