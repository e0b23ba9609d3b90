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
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// builds a bare request for the given URL
func requestFor(rawUrl string) *http.Request {
	u, _ := url.Parse(rawUrl)
	return &http.Request{URL: u}
}

func TestSecureHttpClient(t *testing.T) {
	assert := assert.New(t)
	client := SecureHttpClient(30 * time.Second)
	assert.Equal(30*time.Second, client.Timeout)
	assert.NotNil(client.Transport)

	api := requestFor("https://openspending.org/api")
	plainApi := requestFor("http://openspending.org/api")
	storage := requestFor("https://storage.example.org/bucket/")
	plainStorage := requestFor("http://storage.example.org/bucket/")

	// redirects to HTTPS are reported rather than followed
	for _, origin := range []*http.Request{api, plainApi} {
		err := client.CheckRedirect(storage, []*http.Request{origin})
		assert.Equal(http.ErrUseLastResponse, err)
	}

	// redirects to plain HTTP are refused, whatever the origin
	for _, origin := range []*http.Request{api, plainApi} {
		err := client.CheckRedirect(plainStorage, []*http.Request{origin})
		if assert.IsType(&DowngradedRedirectError{}, err) {
			assert.Equal("storage.example.org/bucket/", err.(*DowngradedRedirectError).Endpoint)
		}
	}
}
