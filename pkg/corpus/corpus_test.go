// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package corpus

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsfuzz/jsfuzz/pkg/testutil"
)

func testManager(t *testing.T) *Manager {
	mgr, err := Load(t.TempDir(), rand.New(testutil.RandSource(t)))
	require.NoError(t, err)
	return mgr
}

func TestEmptyCorpus(t *testing.T) {
	mgr := testManager(t)
	assert.Nil(t, mgr.PickRandom())
	assert.Equal(t, 0, mgr.Len())
	script, err := mgr.GetRandomScript()
	require.NoError(t, err)
	assert.Nil(t, script)
}

func TestAddAndPick(t *testing.T) {
	mgr := testManager(t)
	entry, err := mgr.AddEntry([]byte("let a = 1;"), []uint32{93}, 1.0, 10*time.Millisecond, false)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, uint64(0), entry.ID)
	assert.Equal(t, "seed_0.js", entry.Path)

	// The file exists, has the advertised size and parses.
	data, err := os.ReadFile(filepath.Join(mgr.Root(), entry.Path))
	require.NoError(t, err)
	assert.Equal(t, entry.SizeBytes, uint64(len(data)))

	sel := mgr.PickRandom()
	require.NotNil(t, sel)
	assert.Equal(t, entry.ID, sel.ID)

	ast, err := mgr.GetRandomScript()
	require.NoError(t, err)
	require.NotNil(t, ast)
}

func TestDuplicateRejection(t *testing.T) {
	mgr := testManager(t)
	script := []byte("let a = 1;")
	edges := []uint32{93}
	entry, err := mgr.AddEntry(script, edges, 1.0, 0, false)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, mgr.ContainsFingerprint(Fingerprint(script, edges)))

	metaBefore, err := os.ReadFile(filepath.Join(mgr.Root(), "metadata.json"))
	require.NoError(t, err)

	// Same bytes and edges: fingerprint collides, no side effects.
	dup, err := mgr.AddEntry(script, edges, 1.0, 0, false)
	require.NoError(t, err)
	assert.Nil(t, dup)
	assert.Equal(t, 1, mgr.Len())
	metaAfter, err := os.ReadFile(filepath.Join(mgr.Root(), "metadata.json"))
	require.NoError(t, err)
	assert.Equal(t, string(metaBefore), string(metaAfter))

	// Different edge sets produce a different fingerprint.
	other, err := mgr.AddEntry(script, []uint32{94}, 1.0, 0, false)
	require.NoError(t, err)
	assert.NotNil(t, other)
}

func TestTimeoutSidecar(t *testing.T) {
	mgr := testManager(t)
	entry, err := mgr.AddEntry([]byte("while(1){}"), nil, -1.0, 0, true)
	require.NoError(t, err)
	assert.Nil(t, entry, "timeout inputs are never admitted as seeds")
	assert.Equal(t, 0, mgr.Len())
	assert.FileExists(t, filepath.Join(mgr.Root(), "timeouts", "seed_0.js"))
}

func TestCrashSidecar(t *testing.T) {
	mgr := testManager(t)
	script := []byte("nonExistentIntrinsic();")
	require.NoError(t, mgr.PersistCrash(script, 1234))
	data, err := os.ReadFile(filepath.Join(mgr.Root(), "crashes", "crash_1234.js"))
	require.NoError(t, err)
	assert.Equal(t, script, data)
}

func TestMetadataRoundTrip(t *testing.T) {
	rnd := rand.New(testutil.RandSource(t))
	root := t.TempDir()
	mgr, err := Load(root, rnd)
	require.NoError(t, err)

	_, err = mgr.AddEntry([]byte("let a = 1;"), []uint32{1, 2}, 1.0, 5*time.Millisecond, false)
	require.NoError(t, err)
	_, err = mgr.AddEntry([]byte("let b = 2;"), []uint32{3}, 0.0, 7*time.Millisecond, false)
	require.NoError(t, err)
	require.NoError(t, mgr.RecordResult(0, 5.0, 9*time.Millisecond))

	reloaded, err := Load(root, rnd)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
	if diff := cmp.Diff(mgr.entries, reloaded.entries); diff != "" {
		t.Errorf("entries differ after reload (-orig +reloaded):\n%s", diff)
	}
	assert.Equal(t, mgr.nextID, reloaded.nextID)
}

func TestNextIDMonotone(t *testing.T) {
	mgr := testManager(t)
	e0, err := mgr.AddEntry([]byte("a;"), []uint32{1}, 0, 0, false)
	require.NoError(t, err)
	e1, err := mgr.AddEntry([]byte("b;"), []uint32{2}, 0, 0, false)
	require.NoError(t, err)
	require.NoError(t, mgr.RemoveEntry(e0.ID))
	e2, err := mgr.AddEntry([]byte("c;"), []uint32{3}, 0, 0, false)
	require.NoError(t, err)
	// Ids are never reused.
	assert.Greater(t, e2.ID, e1.ID)
	assert.NoFileExists(t, filepath.Join(mgr.Root(), "seed_0.js"))
}

func TestMetadataFormat(t *testing.T) {
	mgr := testManager(t)
	_, err := mgr.AddEntry([]byte("let a = 1;"), []uint32{7}, 1.0, 3*time.Millisecond, false)
	require.NoError(t, err)

	blob, err := os.ReadFile(filepath.Join(mgr.Root(), "metadata.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(blob, &doc))
	assert.Contains(t, doc, "next_id")
	entries := doc["entries"].([]any)
	entry := entries[0].(map[string]any)
	for _, key := range []string{"id", "path", "fingerprint", "edge_hits", "size_bytes",
		"total_reward", "last_reward", "exec_time_ms", "num_mutations", "last_selected_ts"} {
		assert.Contains(t, entry, key)
	}
}
