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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/colstream/pkg/common/moerr"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultGroupCapacityCeiling, cfg.Pipeline.GroupCapacityCeiling)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, int64(0), cfg.Memory.LimitBytes)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "debug"
format = "json"

[memory]
limit-bytes = 1073741824

[snapshot]
enabled = true
dir = "/tmp/snapshots"

[pipeline]
group-capacity-ceiling = 5000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, int64(1<<30), cfg.Memory.LimitBytes)
	require.True(t, cfg.Snapshot.Enabled)
	require.Equal(t, "/tmp/snapshots", cfg.Snapshot.Dir)
	require.Equal(t, 5000, cfg.Pipeline.GroupCapacityCeiling)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.GroupCapacityCeiling = 0
	require.True(t, moerr.IsMoErrCode(cfg.Validate(), moerr.ErrBadConfig))

	cfg = Default()
	cfg.Snapshot.Enabled = true
	require.True(t, moerr.IsMoErrCode(cfg.Validate(), moerr.ErrBadConfig))

	cfg.Snapshot.Dir = "/tmp/snapshots"
	require.NoError(t, cfg.Validate())
}
