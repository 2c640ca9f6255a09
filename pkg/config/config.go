// Copyright 2023 ColStream
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

package config

import (
	"github.com/BurntSushi/toml"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/logutil"
)

// DefaultGroupCapacityCeiling caps the seeded capacity of a group map so
// a huge limit does not pre-allocate a huge table.
const DefaultGroupCapacityCeiling = 10_000

type Config struct {
	Log      logutil.LogConfig `toml:"log"`
	Memory   MemoryConfig      `toml:"memory"`
	Snapshot SnapshotConfig    `toml:"snapshot"`
	Pipeline PipelineConfig    `toml:"pipeline"`
}

type MemoryConfig struct {
	// LimitBytes is the shared budget reported against by all stages.
	// Zero or below means unlimited.
	LimitBytes int64 `toml:"limit-bytes"`
}

type SnapshotConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type PipelineConfig struct {
	// GroupCapacityCeiling bounds the seeded capacity of group maps.
	GroupCapacityCeiling int `toml:"group-capacity-ceiling"`
}

func Default() *Config {
	return &Config{
		Log: logutil.LogConfig{
			Level:  "info",
			Format: "console",
		},
		Pipeline: PipelineConfig{
			GroupCapacityCeiling: DefaultGroupCapacityCeiling,
		},
	}
}

// Load reads a toml file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, moerr.NewBadConfigNoCtx("parse %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Pipeline.GroupCapacityCeiling <= 0 {
		return moerr.NewBadConfigNoCtx("group-capacity-ceiling must be positive, got %d",
			c.Pipeline.GroupCapacityCeiling)
	}
	if c.Snapshot.Enabled && c.Snapshot.Dir == "" {
		return moerr.NewBadConfigNoCtx("snapshot dir is required when snapshots are enabled")
	}
	return nil
}
