// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config loads cmd/bitquilld's on-disk configuration: an INI file
// under an OS-appropriate app data directory, parsed with
// jessevdk/go-flags, with any flag overridable from the command line.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/dcrutil"
	flags "github.com/jessevdk/go-flags"
)

const defaultConfigFilename = "bitquilld.conf"

var (
	DefaultHomeDir    = dcrutil.AppDataDir("bitquilld", false)
	DefaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
)

// Config defines bitquilld's configuration surface. Defaults live in
// Default() rather than go-flags default tags, so values parsed from the
// config file survive the later command-line pass.
type Config struct {
	HomeDir     string `long:"homedir" description:"Path to application home directory"`
	DataDir     string `long:"datadir" description:"Directory to store document logs"`
	Listen      string `long:"listen" description:"HTTP listen address"`
	CalendarURL string `long:"calendarurl" description:"Base URL of the external anchoring calendar"`
	DebugLevel  string `long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical"`
	LogDir      string `long:"logdir" description:"Directory to store log files, empty to log only to stdout"`

	AnalyzerWindowSize    int     `long:"windowsize" description:"Edit analyzer trailing window size"`
	DifficultyTarget      float64 `long:"difficultytarget" description:"Target inter-edit interval in milliseconds"`
	DifficultyMax         uint8   `long:"difficultymax" description:"Maximum proof-of-work difficulty"`
	AnchorPollIntervalSec int     `long:"anchorpollinterval" description:"Seconds between anchor receipt upgrade polls"`
}

// Default returns a Config populated with every default value, before any
// file or flag parsing.
func Default() *Config {
	return &Config{
		HomeDir:               DefaultHomeDir,
		DataDir:               filepath.Join(DefaultHomeDir, "data"),
		Listen:                ":8219",
		DebugLevel:            "info",
		AnalyzerWindowSize:    50,
		DifficultyTarget:      200,
		DifficultyMax:         32,
		AnchorPollIntervalSec: 300,
	}
}

// Load parses DefaultConfigFile (if present) over the defaults, then lets
// command-line flags override the result.
func Load() (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(DefaultConfigFile); err == nil {
		if err := flags.IniParse(DefaultConfigFile, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", DefaultConfigFile, err)
		}
	}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	if err := ensureHomeDirectory(cfg.HomeDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("config: create data directory: %w", err)
	}
	return cfg, nil
}

// ensureHomeDirectory creates homeDir if it doesn't already exist,
// surfacing a clearer error when homeDir is a dangling symlink.
func ensureHomeDirectory(homeDir string) error {
	err := os.MkdirAll(homeDir, 0700)
	if err != nil {
		if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
			if link, lerr := os.Readlink(e.Path); lerr == nil {
				return fmt.Errorf("config: %s is a symlink to %s; is it mounted?", e.Path, link)
			}
		}
		return fmt.Errorf("config: create home directory: %w", err)
	}
	return nil
}
