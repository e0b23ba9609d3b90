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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/frictionlessdata/datapackage-go/datapackage"
	"github.com/frictionlessdata/datapackage-go/validator"
	"github.com/google/uuid"

	"github.com/OpenSpending-Clone/os-cli/auth"
	"github.com/OpenSpending-Clone/os-cli/frictionless"
	"github.com/OpenSpending-Clone/os-cli/journal"
	vld "github.com/OpenSpending-Clone/os-cli/validation"
)

// This type uploads validated data packages to the storage of the Open
// Spending API on behalf of the owner of an API token.
type Uploader struct {
	// HTTP client used for storage requests
	Client *http.Client
	// proxy for the API, holding the owner's token
	Server *auth.ApiAuthServer
	// account that owns uploaded packages
	Owner string
	// if non-nil, called after each file is stored
	Progress func(file File)
	// validates packages before they are uploaded
	Validator *vld.Validator
}

// the outcome of a successful upload
type Result struct {
	// UUID under which the upload is journaled
	Id uuid.UUID
	// name of the uploaded package
	Package string
	// the files stored, descriptor first
	Files []File
	// total size of the files stored
	PayloadSize int64
	// URL of the descriptor in storage
	DescriptorUrl string
	// loading status reported by the API
	Status string
}

// creates an uploader that stores packages owned by the given account
func New(client *http.Client, server *auth.ApiAuthServer, owner string) *Uploader {
	return &Uploader{
		Client:    client,
		Server:    server,
		Owner:     owner,
		Validator: vld.New(),
	}
}

// Loads the data package at the given path (a directory or descriptor file)
// with the Frictionless data package library, returning a
// NotDataPackageError if it isn't one.
func LoadPackage(pkgPath string) (*datapackage.Package, string, error) {
	descriptorPath, err := vld.ResolveDescriptor(pkgPath)
	if err != nil {
		return nil, "", &NotDataPackageError{Path: pkgPath, Message: "no datapackage.json was found"}
	}
	pkg, err := datapackage.Load(descriptorPath, validator.InMemoryLoader())
	if err != nil {
		return nil, "", &NotDataPackageError{Path: pkgPath, Message: err.Error()}
	}
	return pkg, descriptorPath, nil
}

// Uploads the data package at the given path, which must be a valid data
// package, and records the attempt in the upload journal if it's open.
func (u *Uploader) Upload(ctx context.Context, pkgPath string) (*Result, error) {
	manifest, descriptorPath, err := LoadPackage(pkgPath)
	if err != nil {
		return nil, err
	}
	root := filepath.Dir(descriptorPath)

	verdict, err := u.Validator.Validate(descriptorPath)
	if err != nil {
		return nil, &NotDataPackageError{Path: pkgPath, Message: err.Error()}
	}
	if !verdict.Passed() {
		return nil, &InvalidPackageError{Path: pkgPath, Report: verdict.Report}
	}

	record := journal.Record{
		Id:        uuid.New(),
		Package:   verdict.Package.Name,
		Path:      root,
		Owner:     u.Owner,
		StartTime: time.Now(),
	}
	result, err := u.upload(ctx, verdict.Package, root)
	record.StopTime = time.Now()
	if err != nil {
		record.Status = "failed"
		record.Message = err.Error()
	} else {
		record.Status = "succeeded"
		record.NumFiles = len(result.Files)
		record.PayloadSize = result.PayloadSize
		record.Manifest = manifest
		result.Id = record.Id
	}
	if journal.IsOpen() {
		if jErr := journal.RecordUpload(record); jErr != nil {
			slog.Error(fmt.Sprintf("Couldn't record upload %s: %s", record.Id, jErr.Error()))
		}
	}
	return result, err
}

// here's what the API expects when authorizing uploads
type authorizeRequest struct {
	Metadata struct {
		Owner string `json:"owner"`
		Name  string `json:"name"`
	} `json:"metadata"`
	FileData map[string]File `json:"filedata"`
}

// and here's what it returns: a storage location for each file
type authorizeResponse struct {
	FileData map[string]struct {
		UploadUrl   string            `json:"upload_url"`
		UploadQuery map[string]string `json:"upload_query"`
	} `json:"filedata"`
}

type loadRequest struct {
	DataPackage string `json:"datapackage"`
}

type loadResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error"`
}

func (u *Uploader) upload(ctx context.Context, pkg *frictionless.DataPackage, root string) (*Result, error) {
	files, err := StageFiles(pkg, root)
	if err != nil {
		return nil, &NotDataPackageError{Path: root, Message: err.Error()}
	}
	result := &Result{
		Package:     pkg.Name,
		Files:       files,
		PayloadSize: PayloadSize(files),
	}
	slog.Debug(fmt.Sprintf("Uploading %d file(s) for package %s", len(files), pkg.Name))

	// request a storage location for each file
	var authReq authorizeRequest
	authReq.Metadata.Owner = u.Owner
	authReq.Metadata.Name = pkg.Name
	authReq.FileData = make(map[string]File)
	for _, file := range files {
		authReq.FileData[file.Name] = file
	}
	var authResp authorizeResponse
	if err := u.callApi(ctx, "datastore/authorize", authReq, &authResp); err != nil {
		return nil, err
	}

	// store each file
	for _, file := range files {
		location, found := authResp.FileData[file.Name]
		if !found || location.UploadUrl == "" {
			return nil, &StorageError{
				Url:     u.Server.URL + "/datastore/authorize",
				Message: fmt.Sprintf("no storage location was provided for %s", file.Name),
			}
		}
		target, err := url.Parse(location.UploadUrl)
		if err != nil {
			return nil, &StorageError{Url: location.UploadUrl, Message: err.Error()}
		}
		if len(location.UploadQuery) > 0 {
			query := target.Query()
			for key, value := range location.UploadQuery {
				query.Set(key, value)
			}
			target.RawQuery = query.Encode()
		}
		if err := u.store(ctx, file, target.String()); err != nil {
			return nil, err
		}
		if file.Name == frictionless.DescriptorFile {
			result.DescriptorUrl = location.UploadUrl
		}
		if u.Progress != nil {
			u.Progress(file)
		}
	}

	// ask the API to load the stored package
	var loadResp loadResponse
	if err := u.callApi(ctx, "package/upload", loadRequest{DataPackage: result.DescriptorUrl}, &loadResp); err != nil {
		return nil, err
	}
	if loadResp.Error != "" {
		return nil, &StorageError{Url: u.Server.URL + "/package/upload", Message: loadResp.Error}
	}
	result.Status = loadResp.Status
	return result, nil
}

// POSTs the given request body as JSON to the given API resource, decoding
// the JSON response into the given value
func (u *Uploader) callApi(ctx context.Context, resource string, body, response any) error {
	endpoint := u.Server.URL + "/" + resource
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := u.Server.NewRequest(http.MethodPost, resource, bytes.NewReader(payload))
	if err != nil {
		return &StorageError{Url: endpoint, Message: err.Error()}
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.Client.Do(req)
	if err != nil {
		return &StorageError{Url: endpoint, Message: err.Error()}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StorageError{Url: endpoint, Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return &StorageError{Url: endpoint, Status: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}
	if err := json.Unmarshal(data, response); err != nil {
		return &StorageError{Url: endpoint, Status: resp.StatusCode,
			Message: fmt.Sprintf("invalid response: %s", err.Error())}
	}
	return nil
}

// PUTs a file to its storage location
func (u *Uploader) store(ctx context.Context, file File, target string) error {
	f, err := os.Open(file.LocalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return &StorageError{Url: target, Message: err.Error()}
	}
	req.ContentLength = file.Length
	req.Header.Set("Content-Type", file.Type)
	req.Header.Set("Content-MD5", file.MD5)

	resp, err := u.Client.Do(req)
	if err != nil {
		var downgrade *DowngradedRedirectError
		if errors.As(err, &downgrade) {
			return downgrade
		}
		return &StorageError{Url: target, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return &StorageError{Url: target, Status: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}
	slog.Debug(fmt.Sprintf("Stored %s (%d bytes)", file.Name, file.Length))
	return nil
}

// extracts an explanation from the body of an error response
func errorMessage(body []byte, fallback string) string {
	var result struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &result) == nil {
		if result.Message != "" {
			return result.Message
		}
		if result.Error != "" {
			return result.Error
		}
	}
	return fallback
}

// Writes a zip archive of the data package at the given path (descriptor and
// data files) to the given target file.
func Archive(pkgPath, target string) error {
	pkg, _, err := LoadPackage(pkgPath)
	if err != nil {
		return err
	}
	return pkg.Zip(target)
}
