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
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/oradex/oradex-go/go/odxerrors"
)

// Profile is one named connection shorthand from the profiles file.
// Empty fields leave the corresponding config value untouched.
type Profile struct {
	ConnectString string            `yaml:"connect_string"`
	Username      string            `yaml:"username,omitempty"`
	Password      string            `yaml:"password,omitempty"`
	Privilege     string            `yaml:"privilege,omitempty"`
	Params        map[string]string `yaml:"params,omitempty"`
}

// ProfileStore reads and writes the profiles file, a YAML map of profile
// name to Profile.
type ProfileStore struct {
	fs       afero.Fs
	path     string
	profiles map[string]Profile
}

// DefaultProfilesPath returns ~/.oradex/profiles.yaml.
func DefaultProfilesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", odxerrors.InvalidConfigurationf("resolve home directory: %s", err)
	}
	return filepath.Join(home, ".oradex", "profiles.yaml"), nil
}

// LoadProfiles reads the profiles file. A missing file yields an empty
// store, so first use needs no setup.
func LoadProfiles(fsys afero.Fs, path string) (*ProfileStore, error) {
	store := &ProfileStore{
		fs:       fsys,
		path:     path,
		profiles: make(map[string]Profile),
	}

	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, odxerrors.InvalidConfigurationf("read profiles %s: %s", path, err)
	}
	if err := yaml.Unmarshal(raw, &store.profiles); err != nil {
		return nil, odxerrors.InvalidConfigurationf("parse profiles %s: %s", path, err)
	}
	if store.profiles == nil {
		store.profiles = make(map[string]Profile)
	}
	return store, nil
}

// Get returns the named profile.
func (ps *ProfileStore) Get(name string) (Profile, bool) {
	p, ok := ps.profiles[name]
	return p, ok
}

// Set adds or replaces a profile. Call Save to persist.
func (ps *ProfileStore) Set(name string, p Profile) {
	ps.profiles[name] = p
}

// Delete removes a profile and reports whether it existed.
func (ps *ProfileStore) Delete(name string) bool {
	_, ok := ps.profiles[name]
	delete(ps.profiles, name)
	return ok
}

// Names lists profile names in sorted order.
func (ps *ProfileStore) Names() []string {
	names := make([]string, 0, len(ps.profiles))
	for name := range ps.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of profiles.
func (ps *ProfileStore) Len() int {
	return len(ps.profiles)
}

// Save writes the store back to its file, creating the directory as
// needed. Profiles hold credentials, so the file is user-only.
func (ps *ProfileStore) Save() error {
	raw, err := yaml.Marshal(ps.profiles)
	if err != nil {
		return odxerrors.InvalidConfigurationf("encode profiles: %s", err)
	}
	if dir := filepath.Dir(ps.path); dir != "." {
		if err := ps.fs.MkdirAll(dir, 0o700); err != nil {
			return odxerrors.InvalidConfigurationf("create profiles directory %s: %s", dir, err)
		}
	}
	if err := afero.WriteFile(ps.fs, ps.path, raw, 0o600); err != nil {
		return odxerrors.InvalidConfigurationf("write profiles %s: %s", ps.path, err)
	}
	return nil
}
