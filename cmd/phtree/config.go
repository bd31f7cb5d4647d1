// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"

	"github.com/gaissmai/phtree"
	"github.com/gaissmai/phtree/internal/logx"
	"github.com/gaissmai/phtree/internal/source"
	"github.com/mitchellh/mapstructure"
)

const (
	envPrefix     = "PHTREE_"
	envConfigPath = "PHTREE_CONFIG"
	logSection    = "log"
)

// settings of the command, the tree config and the logger config.
type settings struct {
	tree phtree.Config
	log  logx.Config
}

// loadSettings reads the JSON config file at path, a missing file is fine,
// and applies the PHTREE_* variables of environ on top of it.
//
//	PHTREE_DENSE_MAX_DIMS=4   -> {"dense_max_dims": "4"}
//	PHTREE_LOG_LEVEL=debug    -> {"log": {"level": "debug"}}
func loadSettings(path string, environ []string) (settings, error) {
	s := settings{tree: phtree.DefaultConfig(), log: logx.DefaultConfig()}

	raw, err := source.ReadConfigFile(path)
	if err != nil {
		return s, err
	}

	logRaw := map[string]any{}
	if sec, ok := raw[logSection]; ok {
		m, ok := sec.(map[string]any)
		if !ok {
			return s, fmt.Errorf("config %s: section %q is no object", path, logSection)
		}
		logRaw = m
		delete(raw, logSection)
	}

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, envPrefix) || k == envConfigPath {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(k, envPrefix))

		if sub, ok := strings.CutPrefix(key, logSection+"_"); ok {
			logRaw[sub] = v
			continue
		}
		raw[key] = v
	}

	if s.tree, err = phtree.DecodeConfig(raw); err != nil {
		return s, err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s.log,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return s, err
	}
	if err := dec.Decode(logRaw); err != nil {
		return s, fmt.Errorf("config %s: section %q: %w", path, logSection, err)
	}

	return s, nil
}
