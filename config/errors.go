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

package config

import (
	"fmt"
)

// indicates that no configuration file exists at the given path (or that none
// could be located, if Path is empty)
type NotFoundError struct {
	Path string
}

func (e NotFoundError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("no configuration file was found (looked for $%s, ./%s and ~/%s)",
			PathVariable, FileName, FileName)
	}
	return fmt.Sprintf("configuration file not found: %s", e.Path)
}

// indicates that a configuration file or value is invalid
type ValueError struct {
	// the file concerned, if any
	Path string
	// the key concerned, if any
	Key     string
	Message string
}

func (e ValueError) Error() string {
	switch {
	case e.Key != "":
		return fmt.Sprintf("invalid configuration value for %s: %s", e.Key, e.Message)
	case e.Path != "":
		return fmt.Sprintf("invalid configuration file %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Message)
}
