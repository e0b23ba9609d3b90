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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humamux"
	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"

	"github.com/OpenSpending-Clone/os-cli/auth"
	"github.com/OpenSpending-Clone/os-cli/config"
	"github.com/OpenSpending-Clone/os-cli/journal"
	"github.com/OpenSpending-Clone/os-cli/validation"
)

// Version numbers
var majorVersion = 0
var minorVersion = 2
var patchVersion = 0

// Version string
var Version = fmt.Sprintf("%d.%d.%d", majorVersion, minorVersion, patchVersion)

// This type implements the ValidationService interface, allowing clients to
// validate data packages on the service's file system and to browse the
// upload journal.
type validationService struct {
	// name of the service
	Name string
	// service version identifier
	Version string
	// time which the service was started
	StartTime time.Time
	// port on which the service currently runs
	Port int
	// router for REST endpoints
	Router *mux.Router
	// API wrapper
	API huma.API
	// HTTP server.
	Server *http.Server

	// configuration in effect
	conf config.Config
	// checks access tokens, or nil if no token is needed
	auth *auth.Authenticator
	// orchestrates validation runs
	validator *validation.Validator
}

// authorizes clients for the service, returning the client's user record and
// an error describing any issue encountered
func (service *validationService) authorize(authorizationHeader string) (auth.User, error) {
	if service.auth == nil {
		return auth.User{}, nil
	}
	if !strings.HasPrefix(authorizationHeader, "Bearer ") {
		return auth.User{}, huma.Error401Unauthorized("Invalid authorization header")
	}
	accessToken := strings.TrimSpace(authorizationHeader[len("Bearer "):])
	user, err := service.auth.GetUser(accessToken)
	if err != nil {
		return user, huma.Error401Unauthorized(err.Error())
	}
	return user, nil
}

type ServiceInfoOutput struct {
	Body ServiceInfoResponse `doc:"information about the service itself"`
}

// handler method for root (no authorization needed for this one)
func (service *validationService) getRoot(ctx context.Context,
	input *struct{}) (*ServiceInfoOutput, error) {

	slog.Info("Querying root endpoint...")
	return &ServiceInfoOutput{
		Body: ServiceInfoResponse{
			Name:          service.Name,
			Version:       service.Version,
			Uptime:        int(service.uptime()),
			Documentation: "/docs",
		},
	}, nil
}

type ValidationOutput struct {
	Body ValidationResponse `doc:"the verdict and report for the validated package"`
}

// handler method for validating a data package
func (service *validationService) createValidation(ctx context.Context,
	input *struct {
		Authorization string            `header:"authorization" doc:"Authorization header with access token"`
		Body          ValidationRequest `doc:"the package to validate"`
	}) (*ValidationOutput, error) {

	user, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Validating %s (stage: %s, user: %s)...", input.Body.Path,
		input.Body.Stage, user.Username))
	var result *validation.Result
	if input.Body.Stage == string(validation.DescriptorStage) {
		result, err = service.validator.ValidateDescriptor(input.Body.Path)
	} else {
		result, err = service.validator.Validate(input.Body.Path)
	}
	if err != nil {
		var notFound *validation.DescriptorNotFoundError
		if errors.As(err, &notFound) {
			return nil, huma.Error404NotFound(err.Error())
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &ValidationOutput{
		Body: validationResponse(result),
	}, nil
}

type UploadsOutput struct {
	Body []UploadResponse `doc:"journaled uploads, in the order in which they began"`
}

// handler method for browsing the upload journal
func (service *validationService) getUploads(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with access token"`
		Since         string `query:"since" example:"2024-01-01" doc:"only uploads begun on or after this date (YYYY-MM-DD or RFC 3339)"`
	}) (*UploadsOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	var since time.Time
	if input.Since != "" {
		since, err = journal.ParseTime(input.Since)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
	}

	slog.Info("Querying upload journal...")
	records, err := journal.Records(since, time.Now())
	if err != nil {
		var notOpen *journal.NotOpenError
		if errors.As(err, &notOpen) {
			return nil, huma.Error503ServiceUnavailable(err.Error())
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	output := &UploadsOutput{
		Body: make([]UploadResponse, len(records)),
	}
	for i, record := range records {
		output.Body[i] = UploadResponse{
			Id:          record.Id.String(),
			Package:     record.Package,
			Owner:       record.Owner,
			Status:      record.Status,
			Message:     record.Message,
			StartTime:   record.StartTime,
			StopTime:    record.StopTime,
			NumFiles:    record.NumFiles,
			PayloadSize: record.PayloadSize,
		}
	}
	return output, nil
}

// returns the uptime for the service in seconds
func (service *validationService) uptime() float64 {
	return time.Since(service.StartTime).Seconds()
}

// constructs a validation service given our configuration
func NewValidationService(conf config.Config) (ValidationService, error) {
	service := new(validationService)
	service.Name = "Open Spending validation service"
	service.Version = Version
	service.Port = -1
	service.StartTime = time.Now()
	service.conf = conf
	service.validator = validation.New()

	if conf.Service.AccessFile != "" {
		var err error
		service.auth, err = auth.NewAuthenticator(conf.Service.AccessFile, conf.Service.Secret)
		if err != nil {
			return nil, err
		}
	} else {
		slog.Warn("No access file was given: the service accepts anonymous requests")
	}

	// set up routing
	service.Router = mux.NewRouter()
	service.API = humamux.New(service.Router, huma.DefaultConfig(service.Name, service.Version))
	huma.Get(service.API, "/", service.getRoot)

	// API v1
	huma.Post(service.API, "/api/v1/validations", service.createValidation)
	huma.Get(service.API, "/api/v1/uploads", service.getUploads)

	return service, nil
}

// starts the validation service
func (service *validationService) Start(port int) error {
	slog.Info(fmt.Sprintf("Starting %s on port %d...", service.Name, port))
	slog.Info(fmt.Sprintf("(Accepting up to %d connections)", service.conf.Service.MaxConnections))

	service.StartTime = time.Now()

	// create a listener that limits the number of incoming connections
	service.Port = port
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	defer listener.Close()
	listener = netutil.LimitListener(listener, service.conf.Service.MaxConnections)

	// start the server
	service.Server = &http.Server{
		Handler: service.Router}
	err = service.Server.Serve(listener)

	// we don't report the server closing as an error
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// gracefully shuts down the service without interrupting active connections
func (service *validationService) Shutdown(ctx context.Context) error {
	if service.Server != nil {
		return service.Server.Shutdown(ctx)
	}
	return nil
}

// closes down the service abruptly, freeing all resources
func (service *validationService) Close() {
	if service.Server != nil {
		service.Server.Close()
	}
}
