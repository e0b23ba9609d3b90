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
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// the name of the configuration file, looked for in the working directory
// and in the user's home directory
const FileName = ".openspendingrc"

// if set, the path of the configuration file, overriding discovery
const PathVariable = "OPENSPENDINGRC"

// prefix of environment variables that override configuration values, e.g.
// OPENSPENDING_TOKEN or OPENSPENDING_SERVICE__PORT
const EnvPrefix = "OPENSPENDING_"

// default values
const (
	DefaultApiUrl         = "https://openspending.org/api"
	DefaultTimeout        = 30
	DefaultPort           = 8080
	DefaultMaxConnections = 100
)

// a type with service configuration parameters
type ServiceConfig struct {
	// port on which the validation service listens
	Port int `json:"port" yaml:"port" koanf:"port"`
	// maximum number of allowed incoming connections
	MaxConnections int `json:"max_connections" yaml:"max_connections" koanf:"max_connections"`
	// if given, an encrypted file listing the access tokens of the service's
	// clients (see auth.ReadAccessTokenFile); otherwise no token is needed
	AccessFile string `json:"access_file" yaml:"access_file" koanf:"access_file"`
	// the Fernet key with which the access file is encrypted
	// DO NOT STORE THIS IN A CONFIG FILE! Use ${OPENSPENDING_SERVICE__SECRET}.
	Secret string `json:"secret" yaml:"secret" koanf:"secret"`
}

// the configuration of the command line tool
type Config struct {
	// base URL of the Open Spending API
	ApiUrl string `json:"api_url" yaml:"api_url" koanf:"api_url"`
	// the account that owns uploaded packages
	Owner string `json:"owner" yaml:"owner" koanf:"owner"`
	// API token for the owner's account
	// DO NOT STORE THIS IN A SHARED CONFIG FILE! Use ${OPENSPENDING_TOKEN}.
	Token string `json:"token" yaml:"token" koanf:"token"`
	// timeout for API requests (seconds)
	Timeout int `json:"timeout" yaml:"timeout" koanf:"timeout"`
	// path of the upload journal (defaults to a file in the user's
	// configuration directory)
	Journal string `json:"journal" yaml:"journal" koanf:"journal"`
	// validation service parameters
	Service ServiceConfig `json:"service" yaml:"service" koanf:"service"`
}

// returns a configuration holding default values only
func Default() Config {
	return Config{
		ApiUrl:  DefaultApiUrl,
		Timeout: DefaultTimeout,
		Service: ServiceConfig{
			Port:           DefaultPort,
			MaxConnections: DefaultMaxConnections,
		},
	}
}

// Returns the path of the active configuration file: the file named by
// $OPENSPENDINGRC, ./.openspendingrc or ~/.openspendingrc, whichever is found
// first. Returns an empty string if none exists.
func Locate() string {
	candidates := make([]string, 0, 3)
	if path := os.Getenv(PathVariable); path != "" {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, FileName)
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, FileName))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
			return candidate
		}
	}
	return ""
}

// Reads the active configuration (see Locate). If no configuration file
// exists, defaults and environment variables are used.
func Read() (*Config, error) {
	return Load(Locate())
}

// Loads the configuration from the given file (or from defaults alone if the
// path is empty), then applies any OPENSPENDING_* environment variables. All
// environment variables of the form ${ENV_VAR} within the file are expanded.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"api_url":                 defaults.ApiUrl,
		"timeout":                 defaults.Timeout,
		"service.port":            defaults.Service.Port,
		"service.max_connections": defaults.Service.MaxConnections,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
		slog.Debug("read configuration", "path", path)
	}

	// OPENSPENDING_SERVICE__MAX_CONNECTIONS -> service.max_connections
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var conf Config
	if err := k.Unmarshal("", &conf); err != nil {
		return nil, &ValueError{Path: path, Message: err.Error()}
	}
	conf.ApiUrl = strings.TrimRight(conf.ApiUrl, "/")
	if conf.Journal == "" {
		conf.Journal = DefaultJournalPath()
	}
	if err := validateServiceParameters(conf.Service); err != nil {
		return nil, err
	}
	return &conf, nil
}

// reads the configuration file at the given path (which may be YAML or JSON)
func readFile(path string) (map[string]any, error) {
	bytes, err := file.Provider(path).ReadBytes()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	// before we do anything else, expand any provided environment variables
	bytes = []byte(os.ExpandEnv(string(bytes)))

	values, err := yaml.Parser().Unmarshal(bytes)
	if err != nil {
		return nil, &ValueError{Path: path, Message: err.Error()}
	}
	if values == nil {
		values = make(map[string]any)
	}
	return values, nil
}

// returns the default location of the upload journal
func DefaultJournalPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "openspending", "uploads.db")
}

// Returns the path of the active configuration file, first writing a file
// with default values to ~/.openspendingrc if none exists.
func Ensure() (string, error) {
	if path := Locate(); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	path := filepath.Join(home, FileName)

	conf := Default()
	bytes, err := yamlv3.Marshal(conf)
	if err != nil {
		return "", err
	}
	// the file may eventually hold an API token
	if err := os.WriteFile(path, bytes, 0600); err != nil {
		return "", fmt.Errorf("cannot write %s: %w", path, err)
	}
	slog.Info("wrote default configuration", "path", path)
	return path, nil
}

// This helper validates the given service parameters, returning an
// error indicating success or failure.
func validateServiceParameters(params ServiceConfig) error {
	if params.Port < 0 || params.Port > 65535 {
		return &ValueError{Key: "service.port",
			Message: fmt.Sprintf("invalid port: %d (must be 0-65535)", params.Port)}
	}
	if params.MaxConnections <= 0 {
		return &ValueError{Key: "service.max_connections",
			Message: fmt.Sprintf("invalid max_connections: %d (must be positive)", params.MaxConnections)}
	}
	if params.AccessFile != "" && params.Secret == "" {
		return &ValueError{Key: "service.secret", Message: "an access file requires a secret"}
	}
	return nil
}

// Checks that the configuration holds everything needed to talk to the Open
// Spending API on behalf of its owner.
func (c Config) Validate() error {
	if c.Owner == "" {
		return &ValueError{Key: "owner", Message: "no owner was given"}
	}
	if c.Token == "" {
		return &ValueError{Key: "token", Message: "no API token was given"}
	}
	u, err := url.Parse(c.ApiUrl)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValueError{Key: "api_url", Message: fmt.Sprintf("%q is not a valid URL", c.ApiUrl)}
	}
	if c.Timeout <= 0 {
		return &ValueError{Key: "timeout", Message: fmt.Sprintf("invalid timeout: %d (must be positive)", c.Timeout)}
	}
	return nil
}
