// Package config holds the settings of a test run. Settings are layered:
// defaults, then a JSON file, then WEBSPEC_* environment variables, then
// command-line flags. Every field is nullable so that a layer only overrides
// what it actually sets.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/tebeka/selenium/sauce"
	null "gopkg.in/guregu/null.v3"

	"github.com/wanmail/seleniumexample/database"
	"github.com/wanmail/seleniumexample/driver"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Browser        null.String `json:"browser" envconfig:"WEBSPEC_BROWSER"`
	BaseURL        null.String `json:"baseURL" envconfig:"WEBSPEC_BASE_URL"`
	WaitSeconds    null.Int    `json:"waitSeconds" envconfig:"WEBSPEC_WAIT"`
	PollIntervalMS null.Int    `json:"pollIntervalMS" envconfig:"WEBSPEC_POLL_INTERVAL_MS"`

	DriverPath    null.String `json:"driverPath" envconfig:"WEBSPEC_DRIVER_PATH"`
	DriverPort    null.Int    `json:"driverPort" envconfig:"WEBSPEC_DRIVER_PORT"`
	BrowserBinary null.String `json:"browserBinary" envconfig:"WEBSPEC_BROWSER_BINARY"`
	BrowserArgs   []string    `json:"browserArgs" envconfig:"WEBSPEC_BROWSER_ARGS"`
	Executor      null.String `json:"executor" envconfig:"WEBSPEC_EXECUTOR"`
	FrameBuffer   null.Bool   `json:"xvfb" envconfig:"WEBSPEC_XVFB"`

	MinBrowserVersion null.String `json:"minBrowserVersion" envconfig:"WEBSPEC_MIN_BROWSER_VERSION"`

	SauceUserName  null.String `json:"sauceUserName" envconfig:"WEBSPEC_SAUCE_USERNAME"`
	SauceAccessKey null.String `json:"sauceAccessKey" envconfig:"WEBSPEC_SAUCE_ACCESS_KEY"`
	SaucePlatform  null.String `json:"saucePlatform" envconfig:"WEBSPEC_SAUCE_PLATFORM"`
	SauceVersion   null.String `json:"sauceBrowserVersion" envconfig:"WEBSPEC_SAUCE_BROWSER_VERSION"`

	Artifacts null.String `json:"artifacts" envconfig:"WEBSPEC_ARTIFACTS"`

	DBDriver         null.String `json:"dbDriver" envconfig:"WEBSPEC_DB_DRIVER"`
	DBDSN            null.String `json:"dbDSN" envconfig:"WEBSPEC_DB_DSN"`
	DBProcedureStyle null.String `json:"dbProcedureStyle" envconfig:"WEBSPEC_DB_PROCEDURE_STYLE"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Browser:     null.NewString("chrome", false),
		BaseURL:     null.NewString("https://duckduckgo.com", false),
		WaitSeconds: null.NewInt(7, false),
		Artifacts:   null.NewString("artifacts", false),
		DBDriver:    null.NewString("sqlite", false),
	}
}

// Apply returns c with every field that is set in cfg overridden.
func (c Config) Apply(cfg Config) Config {
	if cfg.Browser.Valid {
		c.Browser = cfg.Browser
	}
	if cfg.BaseURL.Valid {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.WaitSeconds.Valid {
		c.WaitSeconds = cfg.WaitSeconds
	}
	if cfg.PollIntervalMS.Valid {
		c.PollIntervalMS = cfg.PollIntervalMS
	}
	if cfg.DriverPath.Valid {
		c.DriverPath = cfg.DriverPath
	}
	if cfg.DriverPort.Valid {
		c.DriverPort = cfg.DriverPort
	}
	if cfg.BrowserBinary.Valid {
		c.BrowserBinary = cfg.BrowserBinary
	}
	if len(cfg.BrowserArgs) > 0 {
		c.BrowserArgs = cfg.BrowserArgs
	}
	if cfg.Executor.Valid {
		c.Executor = cfg.Executor
	}
	if cfg.FrameBuffer.Valid {
		c.FrameBuffer = cfg.FrameBuffer
	}
	if cfg.MinBrowserVersion.Valid {
		c.MinBrowserVersion = cfg.MinBrowserVersion
	}
	if cfg.SauceUserName.Valid {
		c.SauceUserName = cfg.SauceUserName
	}
	if cfg.SauceAccessKey.Valid {
		c.SauceAccessKey = cfg.SauceAccessKey
	}
	if cfg.SaucePlatform.Valid {
		c.SaucePlatform = cfg.SaucePlatform
	}
	if cfg.SauceVersion.Valid {
		c.SauceVersion = cfg.SauceVersion
	}
	if cfg.Artifacts.Valid {
		c.Artifacts = cfg.Artifacts
	}
	if cfg.DBDriver.Valid {
		c.DBDriver = cfg.DBDriver
	}
	if cfg.DBDSN.Valid {
		c.DBDSN = cfg.DBDSN
	}
	if cfg.DBProcedureStyle.Valid {
		c.DBProcedureStyle = cfg.DBProcedureStyle
	}
	return c
}

// Load layers the JSON file at path, if path is not empty, and then the
// environment read through lookup over the defaults. A nil lookup reads the
// process environment.
func Load(path string, lookup func(string) (string, bool)) (Config, error) {
	conf := Default()
	if path != "" {
		file, err := ReadFile(path)
		if err != nil {
			return conf, err
		}
		conf = conf.Apply(file)
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var env Config
	if err := envconfig.Process("", &env, lookup); err != nil {
		return conf, fmt.Errorf("reading environment: %w", err)
	}
	return conf.Apply(env), nil
}

// ReadFile decodes the JSON configuration file at path.
func ReadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var conf Config
	if err := json.Unmarshal(data, &conf); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return conf, nil
}

// Validate checks the settings that would otherwise fail only after a
// browser process has been started.
func (c Config) Validate() error {
	var errs []error
	if _, err := driver.ParseBrowser(c.Browser.String); err != nil {
		errs = append(errs, err)
	}
	if c.BaseURL.String == "" {
		errs = append(errs, errors.New("base URL is not set"))
	}
	if c.WaitSeconds.Int64 <= 0 {
		errs = append(errs, fmt.Errorf("wait must be positive, got %d seconds", c.WaitSeconds.Int64))
	}
	if c.PollIntervalMS.Valid && c.PollIntervalMS.Int64 <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %dms", c.PollIntervalMS.Int64))
	}
	if c.DriverPort.Valid && (c.DriverPort.Int64 <= 0 || c.DriverPort.Int64 > 65535) {
		errs = append(errs, fmt.Errorf("driver port %d out of range", c.DriverPort.Int64))
	}
	if c.SauceUserName.Valid != c.SauceAccessKey.Valid {
		errs = append(errs, errors.New("sauce user name and access key must be set together"))
	}
	if _, err := database.ParseProcedureStyle(c.DBProcedureStyle.String); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// DriverOptions returns the session options described by c.
func (c Config) DriverOptions() driver.Options {
	opts := driver.Options{
		Browser:           c.Browser.String,
		BaseURL:           c.BaseURL.String,
		Wait:              time.Duration(c.WaitSeconds.Int64) * time.Second,
		PollInterval:      time.Duration(c.PollIntervalMS.Int64) * time.Millisecond,
		DriverPath:        c.DriverPath.String,
		Port:              int(c.DriverPort.Int64),
		Executor:          c.Executor.String,
		BrowserBinary:     c.BrowserBinary.String,
		Args:              c.BrowserArgs,
		FrameBuffer:       c.FrameBuffer.Bool,
		MinBrowserVersion: c.MinBrowserVersion.String,
	}
	if c.SauceUserName.Valid {
		b, _ := driver.ParseBrowser(c.Browser.String)
		name := string(b)
		if b.Headless() {
			name = name[:len(name)-len("-headless")]
		}
		if b == driver.InternetExplorer {
			name = "internet explorer"
		}
		opts.Sauce = &driver.SauceOptions{
			UserName:  c.SauceUserName.String,
			AccessKey: c.SauceAccessKey.String,
			Capabilities: sauce.Capabilities{
				Browser:  name,
				Version:  c.SauceVersion.String,
				Platform: c.SaucePlatform.String,
			},
		}
	}
	return opts
}

// Database returns the query helper described by c.
func (c Config) Database() (*database.Helper, error) {
	if !c.DBDSN.Valid || c.DBDSN.String == "" {
		return nil, fmt.Errorf("%w: database DSN is not set", ErrInvalid)
	}
	style, err := database.ParseProcedureStyle(c.DBProcedureStyle.String)
	if err != nil {
		return nil, err
	}
	return database.New(c.DBDriver.String, c.DBDSN.String, style), nil
}
