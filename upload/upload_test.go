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
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenSpending-Clone/os-cli/auth"
	"github.com/OpenSpending-Clone/os-cli/journal"
	"github.com/OpenSpending-Clone/os-cli/ostest"
)

// This runs setup, runs all tests, and does breakdown.
func TestMain(m *testing.M) {
	ostest.EnableDebugLogging()
	os.Exit(m.Run())
}

const apiToken = "f00dcafe"

// a fake Open Spending API with its own storage
type fakeApi struct {
	Server *httptest.Server
	// files stored, by name
	Stored map[string][]byte
	// descriptor URL passed to package/upload
	Loaded string
	// if non-zero, the status returned for storage requests
	StorageStatus int

	mu sync.Mutex
}

func newFakeApi(t *testing.T) *fakeApi {
	api := &fakeApi{Stored: make(map[string][]byte)}
	router := mux.NewRouter()
	router.HandleFunc("/api/user/check", func(w http.ResponseWriter, r *http.Request) {
		authenticated := r.Header.Get("Authorization") == "Bearer "+apiToken
		json.NewEncoder(w).Encode(map[string]any{
			"authenticated": authenticated,
			"profile":       map[string]string{"username": "jcarberry"},
		})
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/datastore/authorize", func(w http.ResponseWriter, r *http.Request) {
		var req authorizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Metadata.Owner != "jcarberry" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": "bad request"})
			return
		}
		fileData := make(map[string]any)
		for name := range req.FileData {
			fileData[name] = map[string]any{
				"upload_url":   api.Server.URL + "/storage/jcarberry/" + req.Metadata.Name + "/" + name,
				"upload_query": map[string]string{"signature": "abc"},
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"filedata": fileData})
	}).Methods(http.MethodPost)
	router.HandleFunc("/storage/{path:.*}", func(w http.ResponseWriter, r *http.Request) {
		if api.StorageStatus != 0 {
			w.WriteHeader(api.StorageStatus)
			return
		}
		data, _ := io.ReadAll(r.Body)
		sum := md5.Sum(data)
		if r.URL.Query().Get("signature") != "abc" ||
			r.Header.Get("Content-MD5") != base64.StdEncoding.EncodeToString(sum[:]) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		api.mu.Lock()
		api.Stored[mux.Vars(r)["path"]] = data
		api.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPut)
	router.HandleFunc("/api/package/upload", func(w http.ResponseWriter, r *http.Request) {
		var req loadRequest
		json.NewDecoder(r.Body).Decode(&req)
		api.Loaded = req.DataPackage
		json.NewEncoder(w).Encode(map[string]any{"status": "queued", "progress": 0})
	}).Methods(http.MethodPost)
	api.Server = httptest.NewServer(router)
	t.Cleanup(api.Server.Close)
	return api
}

// creates an uploader talking to the given fake API
func newUploader(t *testing.T, api *fakeApi) *Uploader {
	client := api.Server.Client()
	server, err := auth.NewApiAuthServer(client, api.Server.URL+"/api", apiToken)
	require.NoError(t, err)
	return New(client, server, server.User.Username)
}

func TestStageFiles(t *testing.T) {
	assert := assert.New(t)
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": ostest.PaymentsCSV,
	})
	manifest, _, err := LoadPackage(dir)
	assert.Nil(err)
	assert.Equal([]string{"payments"}, manifest.ResourceNames())

	result, err := newUploader(t, newFakeApi(t)).Validator.Validate(dir)
	require.NoError(t, err)
	files, err := StageFiles(result.Package, dir)
	assert.Nil(err)
	if assert.Len(files, 2) {
		assert.Equal("datapackage.json", files[0].Name)
		assert.Equal("application/json", files[0].Type)
		assert.Equal("payments.csv", files[1].Name)
		assert.Equal("text/csv", files[1].Type)
		assert.Equal(int64(len(ostest.PaymentsCSV)), files[1].Length)
		sum := md5.Sum([]byte(ostest.PaymentsCSV))
		assert.Equal(base64.StdEncoding.EncodeToString(sum[:]), files[1].MD5)
	}
	assert.Equal(int64(len(ostest.PaymentsDescriptor)+len(ostest.PaymentsCSV)), PayloadSize(files))
}

func TestUpload(t *testing.T) {
	assert := assert.New(t)
	require.NoError(t, journal.Init(filepath.Join(t.TempDir(), "uploads.db")))
	defer journal.Finalize()

	api := newFakeApi(t)
	uploader := newUploader(t, api)
	var progress []string
	uploader.Progress = func(file File) {
		progress = append(progress, file.Name)
	}

	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": ostest.PaymentsCSV,
	})
	started := time.Now()
	result, err := uploader.Upload(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal("city-budget", result.Package)
	assert.Equal("queued", result.Status)
	assert.Equal([]string{"datapackage.json", "payments.csv"}, progress)
	assert.Equal(ostest.PaymentsCSV, string(api.Stored["jcarberry/city-budget/payments.csv"]))
	assert.Equal(ostest.PaymentsDescriptor, string(api.Stored["jcarberry/city-budget/datapackage.json"]))
	assert.Equal(api.Server.URL+"/storage/jcarberry/city-budget/datapackage.json", api.Loaded)
	assert.Equal(result.DescriptorUrl, api.Loaded)

	record, err := journal.UploadRecord(result.Id)
	assert.Nil(err)
	assert.Equal("succeeded", record.Status)
	assert.Equal("jcarberry", record.Owner)
	assert.Equal(2, record.NumFiles)
	assert.Equal(result.PayloadSize, record.PayloadSize)
	assert.False(record.StartTime.Before(started.Truncate(time.Second)))
}

func TestUploadRejectsInvalidPackage(t *testing.T) {
	assert := assert.New(t)
	api := newFakeApi(t)
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": "id,amount,date\n1,lots,2024-01-01\n",
	})
	result, err := newUploader(t, api).Upload(context.Background(), dir)
	assert.Nil(result)
	var invalid *InvalidPackageError
	if assert.ErrorAs(err, &invalid) {
		assert.False(invalid.Report.OK)
		assert.Contains(err.Error(), "payments.amount[1]")
	}
	assert.Empty(api.Stored)
}

func TestUploadRejectsNonPackage(t *testing.T) {
	api := newFakeApi(t)
	_, err := newUploader(t, api).Upload(context.Background(), t.TempDir())
	assert.IsType(t, &NotDataPackageError{}, err)
}

func TestUploadStorageFailure(t *testing.T) {
	assert := assert.New(t)
	api := newFakeApi(t)
	api.StorageStatus = http.StatusServiceUnavailable
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": ostest.PaymentsCSV,
	})
	_, err := newUploader(t, api).Upload(context.Background(), dir)
	var storageErr *StorageError
	if assert.ErrorAs(err, &storageErr) {
		assert.Equal(http.StatusServiceUnavailable, storageErr.Status)
	}
	assert.Equal("", api.Loaded)
}

func TestArchive(t *testing.T) {
	assert := assert.New(t)
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": ostest.PaymentsCSV,
	})
	target := filepath.Join(t.TempDir(), "city-budget.zip")
	assert.Nil(Archive(dir, target))
	info, err := os.Stat(target)
	assert.Nil(err)
	assert.Greater(info.Size(), int64(0))
}
