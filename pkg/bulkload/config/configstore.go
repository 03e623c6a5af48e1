// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config resolves and reads storagemanager.cnf, the one
// INI-style file the bulk-ingest core depends on for string(section,
// key) lookups. It has no knowledge of what any key means.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"

	"github.com/colstore/bulkimport/pkg/bulkload/errcode"
)

const fileName = "storagemanager.cnf"

// ConfigStore exposes string(section, key) lookups over one resolved
// INI file.
type ConfigStore struct {
	path string
	file *ini.File
}

// searchPath returns the directories searched, in priority order, for
// fileName. "." always wins if present; then $COLUMNSTORE_INSTALL_DIR;
// then /etc.
func searchPath() []string {
	dirs := []string{"."}
	if v := os.Getenv("COLUMNSTORE_INSTALL_DIR"); v != "" {
		dirs = append(dirs, v)
	}
	dirs = append(dirs, "/etc")
	return dirs
}

// Load resolves storagemanager.cnf from the search path and parses it.
// A missing file is a fatal startup error, per spec §6.
func Load() (*ConfigStore, error) {
	for _, dir := range searchPath() {
		p := filepath.Join(dir, fileName)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		f, err := ini.Load(p)
		if err != nil {
			return nil, errcode.NewBadConfig("parse " + p + ": " + err.Error())
		}
		return &ConfigStore{path: p, file: f}, nil
	}
	return nil, errcode.NewBadConfig(fileName + " not found in " + filepath.Join(searchPath()...))
}

// LoadFrom parses an explicit path, bypassing the search list. Used by
// tests and by callers that already resolved the file themselves.
func LoadFrom(path string) (*ConfigStore, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, errcode.NewBadConfig("parse " + path + ": " + err.Error())
	}
	return &ConfigStore{path: path, file: f}, nil
}

// Path returns the resolved file path.
func (c *ConfigStore) Path() string { return c.path }

// GetString returns the string value of (section, key), or ok=false if
// the key is absent. The default (unnamed) section is addressed with
// section = "".
func (c *ConfigStore) GetString(section, key string) (string, bool) {
	sec, err := c.file.GetSection(section)
	if err != nil {
		return "", false
	}
	k, err := sec.GetKey(key)
	if err != nil {
		return "", false
	}
	return k.String(), true
}

// MustGetString is GetString but returns ErrConfigMissing when absent.
func (c *ConfigStore) MustGetString(section, key string) (string, error) {
	v, ok := c.GetString(section, key)
	if !ok {
		return "", errcode.NewConfigMissing(section, key)
	}
	return v, nil
}

// GetStringDefault returns the value, or def if the key is absent.
func (c *ConfigStore) GetStringDefault(section, key, def string) string {
	v, ok := c.GetString(section, key)
	if !ok {
		return def
	}
	return v
}
