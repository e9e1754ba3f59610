/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package session holds what the gqlcache subcommands share: a cache loaded from a
// snapshot directory, and the helpers that decode their input files and print results.
package session

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hypermodeinc/gqlcache/cache"
	"github.com/hypermodeinc/gqlcache/persist"
	"github.com/hypermodeinc/gqlcache/x"
)

// Session is a cache backed by a snapshot directory.
type Session struct {
	DB    *persist.DB
	Cache *cache.Cache
}

// DirFlag registers the --dir flag.
func DirFlag(flag *pflag.FlagSet) {
	flag.StringP("dir", "d", "gqlcache", "Directory holding the cache snapshot.")
}

// Open loads the snapshot in the directory named by --dir.
func Open(conf *viper.Viper) (*Session, error) {
	db, err := persist.Open(conf.GetString("dir"))
	if err != nil {
		return nil, err
	}
	store, err := db.Load()
	if err != nil {
		x.Ignore(db.Close())
		return nil, errors.Wrapf(err, "while loading snapshot")
	}
	c, err := cache.New(cache.WithStore(store))
	if err != nil {
		x.Ignore(db.Close())
		return nil, err
	}
	return &Session{DB: db, Cache: c}, nil
}

// Commit saves the cache back into the directory.
func (s *Session) Commit() error {
	meta, err := s.DB.Save(s.Cache.Snapshot())
	if err != nil {
		return err
	}
	glog.Infof("Committed generation %s with %d nodes", meta.Generation, meta.Nodes)
	return nil
}

// Close disposes the cache and closes the directory.
func (s *Session) Close() {
	s.Cache.Dispose()
	if err := s.DB.Close(); err != nil {
		glog.Errorf("Error while closing snapshot dir: %v", err)
	}
}

// ReadObject decodes the file named by flag into a map. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON. An unset optional flag yields nil.
func ReadObject(conf *viper.Viper, flag string, required bool) (map[string]interface{}, error) {
	path := conf.GetString(flag)
	if path == "" {
		if required {
			return nil, errors.Errorf("--%s is required", flag)
		}
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "while reading --%s", flag)
	}
	return DecodeObject(path, data)
}

// DecodeObject decodes data as YAML or JSON depending on the extension of name.
func DecodeObject(name string, data []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, errors.Wrapf(err, "while decoding YAML from %s", name)
		}
	default:
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, errors.Wrapf(err, "while decoding JSON from %s", name)
		}
	}
	if out == nil {
		return nil, errors.Errorf("%s does not hold an object", name)
	}
	return out, nil
}

// ReadText returns the contents of the file named by flag.
func ReadText(conf *viper.Viper, flag string) (string, error) {
	path := conf.GetString(flag)
	if path == "" {
		return "", errors.Errorf("--%s is required", flag)
	}
	data, err := os.ReadFile(path)
	return string(data), errors.Wrapf(err, "while reading --%s", flag)
}

// Print writes v to w as indented JSON.
func Print(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// PrintErrors writes err to w as a GraphQL error list.
func PrintErrors(w io.Writer, err error) {
	if perr := Print(w, map[string]interface{}{"errors": x.AsGQLErrors(err)}); perr != nil {
		glog.Errorf("Error while printing %v: %v", err, perr)
	}
}
