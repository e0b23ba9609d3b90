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

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

// the token accepted by the fake API
const validApiToken = "f00dcafe"

// starts a fake Open Spending API that checks API tokens
func fakeApi(t *testing.T) *httptest.Server {
	router := mux.NewRouter()
	router.HandleFunc("/api/user/check", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("Authorization") {
		case "Bearer " + validApiToken:
			json.NewEncoder(w).Encode(map[string]any{
				"authenticated": true,
				"profile": map[string]string{
					"name":     "Josiah Carberry",
					"username": "jcarberry",
					"email":    "jsc@example.com",
				},
			})
		case "Bearer expired":
			json.NewEncoder(w).Encode(map[string]any{"authenticated": false})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "bad token"})
		}
	}).Methods(http.MethodGet)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestNewApiAuthServer(t *testing.T) {
	assert := assert.New(t)
	api := fakeApi(t)
	server, err := NewApiAuthServer(api.Client(), api.URL+"/api/", validApiToken)
	assert.Nil(err)
	assert.Equal(api.URL+"/api", server.URL)
	assert.Equal("jcarberry", server.User.Username)
	assert.Equal("Josiah Carberry", server.User.Name)

	req, err := server.NewRequest(http.MethodPost, "package/upload", http.NoBody)
	assert.Nil(err)
	assert.Equal(api.URL+"/api/package/upload", req.URL.String())
	assert.Equal("Bearer "+validApiToken, req.Header.Get("Authorization"))
}

func TestApiAuthServerRejectsBadTokens(t *testing.T) {
	assert := assert.New(t)
	api := fakeApi(t)

	server, err := NewApiAuthServer(api.Client(), api.URL+"/api", "wrong")
	assert.Nil(server)
	if assert.IsType(&UnauthorizedError{}, err) {
		assert.Contains(err.Error(), "bad token")
	}

	server, err = NewApiAuthServer(api.Client(), api.URL+"/api", "expired")
	assert.Nil(server)
	assert.IsType(&UnauthorizedError{}, err)

	server, err = NewApiAuthServer(api.Client(), api.URL+"/api", "")
	assert.Nil(server)
	assert.IsType(&UnauthorizedError{}, err)
}
