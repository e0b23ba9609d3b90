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
	"fmt"
	"io"
	"net/http"
	"strings"
)

// this type represents a proxy for the authentication service of the Open
// Spending API, which checks the API token of the owner of uploaded packages
type ApiAuthServer struct {
	// base URL of the Open Spending API
	URL string
	// API token
	AccessToken string
	// the user that owns the token
	User User

	client *http.Client
}

// here's how the Open Spending API represents errors in responses to API calls
type apiErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// here's how the Open Spending API describes the owner of a token
type userCheckResponse struct {
	Authenticated bool `json:"authenticated"`
	Profile       struct {
		Name         string `json:"name"`
		Username     string `json:"username"`
		Email        string `json:"email"`
		Organization string `json:"organization"`
	} `json:"profile"`
}

// constructs a proxy to the Open Spending authentication service at the given
// API URL using the given API token, verifying that the token belongs to a
// user, or returns a non-nil error explaining any issue encountered
func NewApiAuthServer(client *http.Client, apiUrl, accessToken string) (*ApiAuthServer, error) {
	if accessToken == "" {
		return nil, &UnauthorizedError{Message: "no API token was given"}
	}
	server := ApiAuthServer{
		URL:         strings.TrimRight(apiUrl, "/"),
		AccessToken: accessToken,
		client:      client,
	}
	if server.client == nil {
		server.client = http.DefaultClient
	}

	// verify that the access token works (i.e. that the user is logged in)
	resp, err := server.get("user/check")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiAuthError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var result userCheckResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("invalid response from %s/user/check: %w", server.URL, err)
	}
	if !result.Authenticated {
		return nil, &UnauthorizedError{Message: "the API token was not accepted"}
	}
	server.User = User{
		Name:         result.Profile.Name,
		Username:     result.Profile.Username,
		Email:        result.Profile.Email,
		Organization: result.Profile.Organization,
	}
	return &server, nil
}

// emits an error representing the error in a response to the auth server
func apiAuthError(response *http.Response) error {
	message := response.Status
	body, err := io.ReadAll(response.Body)
	if err == nil {
		var result apiErrorResponse
		if json.Unmarshal(body, &result) == nil {
			if result.Message != "" {
				message = result.Message
			} else if result.Error != "" {
				message = result.Error
			}
		}
	}
	return &UnauthorizedError{Message: fmt.Sprintf("%s (%d)", message, response.StatusCode)}
}

// constructs a new request to the auth server with the correct headers, etc
// * method can be http.MethodGet, http.MethodPut, http.MethodPost, etc
// * resource is the name of the desired endpoint/resource
// * body can be http.NoBody
func (server *ApiAuthServer) NewRequest(method, resource string,
	body io.Reader) (*http.Request, error) {

	req, err := http.NewRequest(method, fmt.Sprintf("%s/%s", server.URL, resource), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+server.AccessToken)
	return req, nil
}

// performs a GET request on the given resource, returning the resulting
// response and error
func (server *ApiAuthServer) get(resource string) (*http.Response, error) {
	req, err := server.NewRequest(http.MethodGet, resource, http.NoBody)
	if err != nil {
		return nil, err
	}
	return server.client.Do(req)
}
