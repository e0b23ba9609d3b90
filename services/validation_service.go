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

package services

import (
	"context"
	"time"

	"github.com/OpenSpending-Clone/os-cli/validation"
)

// this type encodes a JSON object for responding to root queries
type ServiceInfoResponse struct {
	Name          string `json:"name" example:"os-cli validation service" doc:"The name of the service API"`
	Version       string `json:"version" example:"1.0.0" doc:"The version string (major.minor.patch)"`
	Uptime        int    `json:"uptime" example:"345600" doc:"The time the service has been up (seconds)"`
	Documentation string `json:"documentation" example:"/docs" doc:"The OpenAPI documentation endpoint"`
}

// a request to validate a data package (POST)
type ValidationRequest struct {
	// location of the package on the service's file system
	Path string `json:"path" example:"/data/city-budget" doc:"path of a data package directory or descriptor"`
	// how much of the package to check
	Stage string `json:"stage,omitempty" enum:"package,data" default:"data" doc:"check the descriptor only (package) or the descriptor and data (data)"`
}

// a single issue in a validation report
type IssueResponse struct {
	Kind     string `json:"kind" example:"TypeMismatch" doc:"the kind of issue"`
	Resource string `json:"resource,omitempty" example:"payments" doc:"the resource concerned, if any"`
	Field    string `json:"field,omitempty" example:"amount" doc:"the field concerned, if any"`
	Row      int    `json:"row,omitempty" example:"2" doc:"the 1-based data row concerned, if any"`
	Message  string `json:"message" example:"\"abc\" is not a number" doc:"an explanation of the issue"`
}

// a response for a validation request (POST)
type ValidationResponse struct {
	// true if the package passed validation
	Ok bool `json:"ok" doc:"true if no issues were found"`
	// PASS or FAIL
	Verdict string `json:"verdict" example:"FAIL" doc:"the overall verdict"`
	// the last stage that ran
	Stage string `json:"stage" example:"data" doc:"the last stage checked"`
	// issues in the order found
	Issues []IssueResponse `json:"issues" doc:"the issues found, in the order in which they were found"`
	// the rendered report
	Report string `json:"report" doc:"a human-readable report with one line per issue"`
}

// a response describing a journaled upload (GET)
type UploadResponse struct {
	Id          string    `json:"id" doc:"a UUID identifying the upload"`
	Package     string    `json:"package" example:"city-budget" doc:"the name of the uploaded package"`
	Owner       string    `json:"owner" doc:"the account owning the package"`
	Status      string    `json:"status" example:"succeeded" doc:"succeeded or failed"`
	Message     string    `json:"message,omitempty" doc:"an explanation of a failed upload"`
	StartTime   time.Time `json:"start_time" doc:"the time at which the upload began"`
	StopTime    time.Time `json:"stop_time" doc:"the time at which the upload completed"`
	NumFiles    int       `json:"num_files" doc:"the number of files stored"`
	PayloadSize int64     `json:"payload_size" doc:"the number of bytes stored"`
}

// converts a validation result to a response
func validationResponse(result *validation.Result) ValidationResponse {
	response := ValidationResponse{
		Ok:      result.Passed(),
		Verdict: result.Verdict.String(),
		Stage:   string(result.Stage),
		Issues:  make([]IssueResponse, len(result.Report.Issues)),
		Report:  result.Report.Text(),
	}
	for i, issue := range result.Report.Issues {
		response.Issues[i] = IssueResponse{
			Kind:     issue.Kind.String(),
			Resource: issue.Resource,
			Field:    issue.Field,
			Row:      issue.Row,
			Message:  issue.Message,
		}
	}
	return response
}

// ValidationService defines the interface for our validation service.
type ValidationService interface {
	// Starts the service on the selected port, returning an error that indicates
	// success or failure.
	Start(port int) error
	// Gracefully shuts down the service without interrupting active connections.
	Shutdown(ctx context.Context) error
	// Closes down the service, freeing all resources.
	Close()
}
