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

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenSpending-Clone/os-cli/config"
	"github.com/OpenSpending-Clone/os-cli/journal"
	"github.com/OpenSpending-Clone/os-cli/ostest"
	"github.com/OpenSpending-Clone/os-cli/services"
	"github.com/OpenSpending-Clone/os-cli/validation"
)

// runs the os command with the given arguments and input, returning its
// output
func runWithInput(t *testing.T, input string, args ...string) (string, error) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func run(t *testing.T, args ...string) (string, error) {
	return runWithInput(t, "", args...)
}

// isolates a test from the caller's configuration, returning the home
// directory
func isolate(t *testing.T) string {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.PathVariable, "")
	for _, key := range []string{"API_URL", "OWNER", "TOKEN", "TIMEOUT", "JOURNAL",
		"SERVICE__PORT", "SERVICE__MAX_CONNECTIONS", "SERVICE__ACCESS_FILE", "SERVICE__SECRET"} {
		t.Setenv(config.EnvPrefix+key, "")
		os.Unsetenv(config.EnvPrefix + key)
	}
	t.Chdir(t.TempDir())
	return home
}

// writes a configuration file named by $OPENSPENDINGRC
func useConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "openspendingrc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv(config.PathVariable, path)
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	assert.Nil(t, err)
	assert.Equal(t, "os-cli "+services.Version+"\n", out)
}

func TestConfigLocateAndEnsure(t *testing.T) {
	assert := assert.New(t)
	home := isolate(t)

	out, err := run(t, "config", "locate")
	assert.Nil(err)
	assert.Equal("\"\"\n", out)

	out, err = run(t, "config", "ensure")
	assert.Nil(err)
	var path string
	assert.Nil(json.Unmarshal([]byte(out), &path))
	assert.Equal(filepath.Join(home, config.FileName), path)

	out, err = run(t, "config")
	assert.Nil(err)
	var conf map[string]any
	assert.Nil(json.Unmarshal([]byte(out), &conf))
	assert.Equal(config.DefaultApiUrl, conf["api_url"])

	_, err = run(t, "config", "delete")
	assert.NotNil(err)
}

func TestValidatePackage(t *testing.T) {
	assert := assert.New(t)
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, nil)
	out, err := run(t, "validate", "package", dir)
	assert.Nil(err)
	assert.Equal(msgPackageSuccess+"\n", out)

	dir = ostest.WritePackage(t, `{"title": "no name"}`, nil)
	out, err = run(t, "validate", "package", dir)
	assert.Nil(err)
	assert.Contains(out, msgPackageError)
	assert.Contains(out, "MissingField: name — ")
	assert.Contains(out, RequiredFieldsUrl)

	_, err = run(t, "validate", "package", "--fail-on-error", dir)
	var failed *ValidationFailedError
	if assert.ErrorAs(err, &failed) {
		assert.Equal(2, failed.Issues)
	}
}

func TestValidateData(t *testing.T) {
	assert := assert.New(t)
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": ostest.PaymentsCSV,
	})
	out, err := run(t, "validate", "data", "--fail-on-error", dir)
	assert.Nil(err)
	assert.Contains(out, "Congratulations, the data looks good!")
}

func TestValidateDataReportsIssues(t *testing.T) {
	assert := assert.New(t)
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": "id,amount,date\n1,abc,2024-01-01\n",
	})
	out, err := run(t, "validate", "data", dir)
	assert.Nil(err)
	assert.Contains(out, "TypeMismatch: payments.amount[1] — ")
	assert.Contains(out, "IMPORTANT: Not all errors")
	assert.Contains(out, GuideUrl)
	assert.Contains(out, "That is all for now.")

	// without a terminal, --interactive changes nothing
	interactiveOut, err := run(t, "validate", "data", "--interactive", dir)
	assert.Nil(err)
	assert.Equal(out, interactiveOut)

	_, err = run(t, "validate", "data", "--fail-on-error", dir)
	var failed *ValidationFailedError
	assert.ErrorAs(err, &failed)
}

// replaces the terminal check and the program launchers for a test,
// returning the commands that would have been run
func fakeTerminal(t *testing.T) *[]string {
	var launched []string
	oldIsTerminal, oldStart, oldRun := isTerminal, startProgram, runProgram
	isTerminal = func(io.Reader) bool { return true }
	startProgram = func(name string, args ...string) error {
		launched = append(launched, strings.Join(append([]string{name}, args...), " "))
		return nil
	}
	runProgram = startProgram
	t.Cleanup(func() {
		isTerminal, startProgram, runProgram = oldIsTerminal, oldStart, oldRun
	})
	return &launched
}

func TestValidateDataInteractive(t *testing.T) {
	assert := assert.New(t)
	launched := fakeTerminal(t)
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "nano -w")
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": "id,amount,date\n1,abc,2024-01-01\n",
	})

	out, err := runWithInput(t, "y\nyes\ny\n", "validate", "data", "--interactive", dir)
	assert.Nil(err)
	assert.Contains(out, "Shall we take a look?")
	assert.Contains(out, "TypeMismatch: payments.amount[1] — ")
	if assert.Len(*launched, 2) {
		assert.Contains((*launched)[0], GuideUrl)
		assert.Equal("nano -w "+filepath.Join(dir, "datapackage.json"), (*launched)[1])
	}

	// declining everything shows nothing and launches nothing
	*launched = nil
	out, err = runWithInput(t, "n\n\n", "validate", "data", "--interactive", dir)
	assert.Nil(err)
	assert.NotContains(out, "TypeMismatch")
	assert.Empty(*launched)
	assert.Contains(out, "That is all for now.")
}

// answers one prompt per read, removing a file just before the answer with
// the given index
type lineReader struct {
	lines  []string
	remove string
	before int
	reads  int
}

func (r *lineReader) Read(p []byte) (int, error) {
	if len(r.lines) == 0 {
		return 0, io.EOF
	}
	if r.reads == r.before {
		os.Remove(r.remove)
	}
	r.reads++
	n := copy(p, r.lines[0])
	r.lines = r.lines[1:]
	return n, nil
}

// no editor is run if the descriptor is gone by the time the user asks for it
func TestValidateDataEditMissingDescriptor(t *testing.T) {
	assert := assert.New(t)
	launched := fakeTerminal(t)
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": "id,amount,date\n1,abc,2024-01-01\n",
	})

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(&lineReader{
		lines:  []string{"n\n", "n\n", "y\n"},
		remove: filepath.Join(dir, "datapackage.json"),
		before: 2,
	})
	cmd.SetArgs([]string{"validate", "data", "--interactive", dir})
	assert.Nil(cmd.Execute())
	assert.Empty(*launched)
	assert.Contains(buf.String(), "That is all for now.")
}

// a launched program is reaped once it exits rather than left as a zombie
func TestStartDetachedReapsProgram(t *testing.T) {
	assert := assert.New(t)
	program, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no true program available")
	}
	cmd := exec.Command(program)
	assert.Nil(startDetached(cmd))
	assert.Eventually(func() bool {
		return errors.Is(cmd.Process.Signal(syscall.Signal(0)), os.ErrProcessDone)
	}, 10*time.Second, 10*time.Millisecond)

	assert.NotNil(startDetached(exec.Command(filepath.Join(t.TempDir(), "missing"))))
}

func TestValidateMissingDescriptor(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	for _, stage := range []string{"package", "data"} {
		out, err := run(t, "validate", stage, dir)
		var notFound *validation.DescriptorNotFoundError
		assert.ErrorAs(err, &notFound)
		assert.Contains(out, "No data package descriptor (datapackage.json) was found")
	}
}

func TestHistory(t *testing.T) {
	assert := assert.New(t)
	isolate(t)
	dbPath := filepath.Join(t.TempDir(), "uploads.db")
	useConfig(t, "journal: "+dbPath+"\n")

	out, err := run(t, "history")
	assert.Nil(err)
	assert.Equal("No uploads found.\n", out)

	require.NoError(t, journal.Init(dbPath))
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"old-budget", "new-budget"} {
		require.NoError(t, journal.RecordUpload(journal.Record{
			Id:          uuid.New(),
			Package:     name,
			Path:        "/data/" + name,
			Owner:       "city",
			StartTime:   start.AddDate(0, i, 0),
			StopTime:    start.AddDate(0, i, 0).Add(time.Second),
			Status:      "succeeded",
			NumFiles:    2,
			PayloadSize: 2048,
		}))
	}
	require.NoError(t, journal.Finalize())

	out, err = run(t, "history")
	assert.Nil(err)
	assert.Contains(out, "old-budget")
	assert.Contains(out, "new-budget")
	assert.Contains(out, "2.0 kB")

	out, err = run(t, "history", "--since", "2024-05-15")
	assert.Nil(err)
	assert.NotContains(out, "old-budget")
	assert.Contains(out, "new-budget")

	_, err = run(t, "history", "--since", "last week")
	assert.NotNil(err)
}

func TestUploadWithoutConfig(t *testing.T) {
	assert := assert.New(t)
	isolate(t)
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": ostest.PaymentsCSV,
	})
	out, err := run(t, "upload", dir)
	var notFound *config.NotFoundError
	assert.ErrorAs(err, &notFound)
	assert.Contains(out, "Uploading requires a config file.")
}

func TestUploadWithoutToken(t *testing.T) {
	isolate(t)
	useConfig(t, "owner: city\n")
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": ostest.PaymentsCSV,
	})
	_, err := run(t, "upload", dir)
	var valueErr *config.ValueError
	if assert.ErrorAs(t, err, &valueErr) {
		assert.Equal(t, "token", valueErr.Key)
	}
}

// starts a minimal Open Spending API that accepts everything, returning its
// base URL and the names of the files it stored
func startApi(t *testing.T) (string, *[]string) {
	var stored []string
	router := mux.NewRouter()
	var server *httptest.Server
	router.HandleFunc("/api/user/check", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"authenticated": r.Header.Get("Authorization") == "Bearer s3cr3t",
			"profile":       map[string]string{"username": "city"},
		})
	})
	router.HandleFunc("/api/datastore/authorize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FileData map[string]any `json:"filedata"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		fileData := make(map[string]any)
		for name := range req.FileData {
			fileData[name] = map[string]any{"upload_url": server.URL + "/storage/" + name}
		}
		json.NewEncoder(w).Encode(map[string]any{"filedata": fileData})
	})
	router.HandleFunc("/storage/{name}", func(w http.ResponseWriter, r *http.Request) {
		stored = append(stored, mux.Vars(r)["name"])
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPut)
	router.HandleFunc("/api/package/upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "queued"})
	})
	server = httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server.URL + "/api", &stored
}

func TestUpload(t *testing.T) {
	assert := assert.New(t)
	isolate(t)
	apiUrl, stored := startApi(t)
	dbPath := filepath.Join(t.TempDir(), "uploads.db")
	useConfig(t, "api_url: "+apiUrl+"\nowner: city\ntoken: s3cr3t\njournal: "+dbPath+"\n")

	root := t.TempDir()
	dir := filepath.Join(root, "city-budget")
	require.NoError(t, os.MkdirAll(dir, 0755))
	ostest.WriteFile(t, dir, "datapackage.json", ostest.PaymentsDescriptor)
	ostest.WriteFile(t, dir, "payments.csv", ostest.PaymentsCSV)

	out, err := run(t, "upload", "--archive", dir)
	require.NoError(t, err)
	assert.Equal([]string{"datapackage.json", "payments.csv"}, *stored)
	assert.Contains(out, "stored payments.csv")
	assert.Contains(out, "Your data is now live on Open Spending!")

	info, err := os.Stat(filepath.Join(root, "city-budget.zip"))
	if assert.Nil(err) {
		assert.True(info.Size() > 0)
	}

	// the upload was journaled
	out, err = run(t, "history")
	assert.Nil(err)
	assert.Contains(out, "city-budget")
	assert.Contains(out, "succeeded")
}

func TestUploadRejectsInvalidPackage(t *testing.T) {
	assert := assert.New(t)
	isolate(t)
	apiUrl, stored := startApi(t)
	useConfig(t, "api_url: "+apiUrl+"\nowner: city\ntoken: s3cr3t\njournal: "+
		filepath.Join(t.TempDir(), "uploads.db")+"\n")
	dir := ostest.WritePackage(t, ostest.PaymentsDescriptor, map[string]string{
		"payments.csv": "id,amount,date\n1,abc,2024-01-01\n",
	})
	out, err := run(t, "upload", dir)
	var failed *ValidationFailedError
	assert.True(errors.As(err, &failed))
	assert.Contains(out, "TypeMismatch: payments.amount[1] — ")
	assert.Empty(*stored)
}
