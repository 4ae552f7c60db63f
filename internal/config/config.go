// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvJSONOverride names the environment variable holding a JSON document merged over the file config.
const EnvJSONOverride = "GO_OIDC_USERS_CONFIG_JSON"

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	return decode(v)
}

// Watch re-reads the config file on every change and hands valid configs to onChange.
// Invalid intermediate states are logged and skipped.
func Watch(path string, onChange func(Config)) error {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(err, "failed to read main config file")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		c, err := decode(v)
		if err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("config change ignored")
			return
		}

		log.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("config reloaded")
		onChange(c)
	})
	v.WatchConfig()

	return nil
}

func newViper(path string) *viper.Viper {
	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	v.SetConfigName("main")
	v.SetConfigType("toml")
	v.AddConfigPath(path)

	return v
}

func decode(v *viper.Viper) (Config, error) {
	// override it from env
	if JSONConfigEnv := os.Getenv(EnvJSONOverride); JSONConfigEnv != "" {
		if err := mergeJSONOverride(v, JSONConfigEnv); err != nil {
			return Config{}, err
		}
	}

	var c Config

	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode main config file")
	}

	c.TokenAuth = c.TokenAuth.WithDefaults()
	c.ApplyDevMode()

	return c, validate(&c)
}

// mergeJSONOverride merges a JSON document over the values read from the file.
// The result is decoded together with the file, so a single string is accepted where a list is expected.
func mergeJSONOverride(v *viper.Viper, configAsJSON string) error {
	var override map[string]any

	if err := json.Unmarshal([]byte(configAsJSON), &override); err != nil {
		return errors.Wrap(err, "failed to read json config override")
	}

	if err := v.MergeConfigMap(override); err != nil {
		return errors.Wrap(err, "failed to merge json config override")
	}

	return nil
}

// ApplyDevMode switches logging to debug level on a human readable console when DevMode is set.
// An explicit trace level is kept.
func (c *Config) ApplyDevMode() {
	if !c.DevMode {
		return
	}

	if !strings.EqualFold(c.Log.LogLevel, zerolog.TraceLevel.String()) {
		c.Log.LogLevel = zerolog.DebugLevel.String()
	}

	c.Log.Console.Enabled = true
	c.Log.Console.UseConsoleWriter = true
	c.Log.EnableAccessLogToConsole = true
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	var buffer bytes.Buffer

	if err := toml.NewEncoder(&buffer).Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate minimal config settings and fills in runtime defaults.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	if err := validator.New().Struct(c.TokenAuth); err != nil {
		return errors.Wrap(ErrInvalidTokenAuth, err.Error())
	}

	if err := validator.New().Struct(c.Revocation); err != nil {
		return errors.Wrap(err, invalidErrMessage)
	}

	return nil
}
