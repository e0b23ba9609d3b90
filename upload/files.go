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

package upload

import (
	"crypto/md5"
	"encoding/base64"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/OpenSpending-Clone/os-cli/frictionless"
)

// a file belonging to a data package, ready for upload
type File struct {
	// path relative to the package directory (slash-separated), which is also
	// the file's name in storage
	Name string `json:"name"`
	// location of the file on the local file system
	LocalPath string `json:"-"`
	// size in bytes
	Length int64 `json:"length"`
	// base64-encoded MD5 checksum
	MD5 string `json:"md5"`
	// media type
	Type string `json:"type"`
}

// Gathers the files of the given data package, whose descriptor lives in the
// given directory: the descriptor itself followed by the data file of each
// resource, in descriptor order. Files shared by several resources appear once.
func StageFiles(pkg *frictionless.DataPackage, root string) ([]File, error) {
	files := make([]File, 0, len(pkg.Resources)+1)
	descriptor, err := stageFile(root, frictionless.DescriptorFile, "application/json")
	if err != nil {
		return nil, err
	}
	files = append(files, descriptor)

	staged := map[string]bool{descriptor.Name: true}
	for _, res := range pkg.Resources {
		name := path.Clean(filepath.ToSlash(res.Path))
		if staged[name] {
			continue
		}
		file, err := stageFile(root, name, res.MediaType)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
		staged[name] = true
	}
	return files, nil
}

// computes the size and checksum of the file with the given name
func stageFile(root, name, mediaType string) (File, error) {
	file := File{
		Name:      name,
		LocalPath: filepath.Join(root, filepath.FromSlash(name)),
		Type:      mediaType,
	}
	if file.Type == "" {
		file.Type = mimetypeForFile(name)
	}

	f, err := os.Open(file.LocalPath)
	if err != nil {
		return file, err
	}
	defer f.Close()
	hash := md5.New()
	file.Length, err = io.Copy(hash, f)
	if err != nil {
		return file, err
	}
	file.MD5 = base64.StdEncoding.EncodeToString(hash.Sum(nil))
	return file, nil
}

// extracts the media type of a file from its name
func mimetypeForFile(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	}
	mimetype := mime.TypeByExtension(filepath.Ext(filename))
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}
	return mimetype
}

// returns the total size of the given files in bytes
func PayloadSize(files []File) int64 {
	var size int64
	for _, file := range files {
		size += file.Length
	}
	return size
}
