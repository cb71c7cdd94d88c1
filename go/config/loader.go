// Copyright 2025 Oradex, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/oradex"
)

const envPrefix = "ORADEX"

// Loader finds and merges configuration. Precedence, lowest to highest:
// built-in defaults, config file, selected profile, environment
// variables, flags bound by the caller.
type Loader struct {
	fs     afero.Fs
	logger *slog.Logger

	configFile   string
	configPaths  []string
	configName   string
	notFound     NotFoundHandling
	profile      string
	profilesPath string

	v *viper.Viper
}

// NewLoader returns a Loader searching the working directory and
// ~/.oradex for an oradex.yaml file.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".oradex"))
	}
	return &Loader{
		fs:          afero.NewOsFs(),
		logger:      logger,
		configPaths: paths,
		configName:  "oradex",
		notFound:    WarnNotFound,
	}
}

// SetFs substitutes the filesystem, for tests.
func (l *Loader) SetFs(fsys afero.Fs) {
	l.fs = fsys
}

// SetProfile selects a named profile to overlay onto the file settings.
func (l *Loader) SetProfile(name string) {
	l.profile = name
}

// SetConfigFile pins an exact config file path, bypassing the search
// paths.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// SetProfilesFile overrides where profiles are read from.
func (l *Loader) SetProfilesFile(path string) {
	l.profilesPath = path
}

// SetNotFoundHandling overrides what a missing config file means.
func (l *Loader) SetNotFoundHandling(h NotFoundHandling) {
	l.notFound = h
}

// RegisterFlags installs the flags controlling config loading itself.
func (l *Loader) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&l.configFile, "config-file", l.configFile,
		"Full path of the config file to use. If set, --config-path and --config-name are ignored.")
	fs.StringSliceVar(&l.configPaths, "config-path", l.configPaths,
		"Paths to search for config files in.")
	fs.StringVar(&l.configName, "config-name", l.configName,
		"Name of the config file (without extension) to search for.")
	fs.Var(&l.notFound, "config-file-not-found-handling",
		"Behavior when no config file is found. (Options: error, ignore, warn)")
	fs.StringVar(&l.profile, "profile", l.profile,
		"Named connection profile to apply from the profiles file.")
	fs.StringVar(&l.profilesPath, "profiles-file", l.profilesPath,
		"Path of the profiles file. Defaults to ~/.oradex/profiles.yaml.")
}

// BindFlags maps caller-owned flags onto config keys so that set flags
// override every other source. Call before Load.
func (l *Loader) BindFlags(fs *pflag.FlagSet, flagToKey map[string]string) error {
	l.ensureViper()
	for flag, key := range flagToKey {
		f := fs.Lookup(flag)
		if f == nil {
			return odxerrors.InvalidConfigurationf("cannot bind unknown flag %q", flag)
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return odxerrors.InvalidConfigurationf("bind flag %q: %s", flag, err)
		}
	}
	return nil
}

func (l *Loader) ensureViper() {
	if l.v != nil {
		return
	}
	v := viper.New()
	v.SetFs(l.fs)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	l.v = v
}

// setDefaults registers every known key so environment overrides apply
// even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("connect.connect_string", "")
	v.SetDefault("connect.username", "")
	v.SetDefault("connect.password", "")
	v.SetDefault("connect.privilege", "")
	v.SetDefault("connect.stmt_cache_size", oradex.DefaultStmtCacheSize)
	v.SetDefault("connect.fetch_array_size", oradex.DefaultFetchArraySize)
	v.SetDefault("connect.dial_timeout", "0s")
	v.SetDefault("pool.min_sessions", oradex.DefaultMinSessions)
	v.SetDefault("pool.max_sessions", oradex.DefaultMaxSessions)
	v.SetDefault("pool.session_increment", oradex.DefaultSessionIncrement)
	v.SetDefault("pool.get_timeout", oradex.DefaultGetTimeout.String())
	v.SetDefault("pool.idle_timeout", "0s")
	v.SetDefault("pool.max_lifetime", "0s")
	v.SetDefault("pool.ping_on_get", false)
	v.SetDefault("pool.name", "oradex")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
}

// Load reads, merges, and decodes all sources into a File.
func (l *Loader) Load() (*File, error) {
	l.ensureViper()

	if err := l.readFile(); err != nil {
		return nil, err
	}
	if err := l.applyProfile(); err != nil {
		return nil, err
	}

	var out File
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		privilegeHookFunc,
	))
	if err := l.v.Unmarshal(&out, hook); err != nil {
		return nil, odxerrors.InvalidConfigurationf("decode config: %s", err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *Loader) readFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(l.configName)
		l.v.SetConfigType("yaml")
		for _, path := range l.configPaths {
			l.v.AddConfigPath(path)
		}
	}

	err := l.v.ReadInConfig()
	if err == nil {
		l.logger.Debug("config file loaded", "file", l.v.ConfigFileUsed())
		return nil
	}
	if !isNotFound(err) {
		return odxerrors.InvalidConfigurationf("read config: %s", err)
	}

	switch l.notFound {
	case WarnNotFound:
		l.logger.Warn("no config file found, using defaults, environment, and flags",
			"name", l.configName, "paths", l.configPaths)
		fallthrough
	case IgnoreNotFound:
		return nil
	default:
		return odxerrors.InvalidConfigurationf("no config file %q found in %v",
			l.configName, l.configPaths)
	}
}

// applyProfile overlays the selected profile. Fields the profile sets win
// over the config file; environment variables and bound flags still win
// over the profile.
func (l *Loader) applyProfile() error {
	if l.profile == "" {
		return nil
	}
	path := l.profilesPath
	if path == "" {
		var err error
		if path, err = DefaultProfilesPath(); err != nil {
			return err
		}
	}

	store, err := LoadProfiles(l.fs, path)
	if err != nil {
		return err
	}
	p, ok := store.Get(l.profile)
	if !ok {
		return odxerrors.InvalidConfigurationf("profile %q not found in %s", l.profile, path)
	}

	connect := make(map[string]any)
	if p.ConnectString != "" {
		connect["connect_string"] = p.ConnectString
	}
	if p.Username != "" {
		connect["username"] = p.Username
	}
	if p.Password != "" {
		connect["password"] = p.Password
	}
	if p.Privilege != "" {
		connect["privilege"] = p.Privilege
	}
	if len(p.Params) > 0 {
		params := make(map[string]any, len(p.Params))
		for k, val := range p.Params {
			params[k] = val
		}
		connect["params"] = params
	}
	if err := l.v.MergeConfigMap(map[string]any{"connect": connect}); err != nil {
		return odxerrors.InvalidConfigurationf("apply profile %q: %s", l.profile, err)
	}
	l.logger.Debug("profile applied", "profile", l.profile, "file", path)
	return nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)
}
