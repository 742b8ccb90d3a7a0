// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	p, err := Load("v8")
	require.NoError(t, err)
	assert.Equal(t, "d8", p.Path)
	assert.Equal(t, time.Second, p.Timeout())
	assert.Nil(t, Builtin("no-such-engine"))
}

func TestLoadYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: custom
path: /opt/engines/d8
args: ["--fuzzing", "--no-lazy"]
timeout_ms: 500
execs_per_process: 100
min_new_edges: 2
`), 0644))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name)
	assert.Equal(t, []string{"--fuzzing", "--no-lazy"}, p.Args)
	assert.Equal(t, 500*time.Millisecond, p.Timeout())
	assert.Equal(t, 100, p.ExecsPerProcess)
	assert.Equal(t, 2, p.MinNewEdges)
	// Defaults are filled in.
	assert.Equal(t, 64, p.QueueSize)
}

func TestLoadUnknown(t *testing.T) {
	_, err := Load("definitely-not-a-profile")
	assert.Error(t, err)
}
