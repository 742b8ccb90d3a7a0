// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package corpus is the single-writer custodian of the on-disk seed set:
// fingerprint-deduplicated corpus files, per-entry reward accounting, and
// the crash/timeout sidecar directories.
package corpus

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jsfuzz/jsfuzz/pkg/js"
	"github.com/jsfuzz/jsfuzz/pkg/log"
	"github.com/jsfuzz/jsfuzz/pkg/osutil"
)

const (
	metadataFile = "metadata.json"
	timeoutsDir  = "timeouts"
	crashesDir   = "crashes"
)

// Entry is one accepted seed. The identity (id, fingerprint) is
// immutable; the statistics are updated after every execution of a
// mutation of this seed.
type Entry struct {
	ID             uint64   `json:"id"`
	Path           string   `json:"path"`
	Fingerprint    uint64   `json:"fingerprint"`
	EdgeHits       []uint32 `json:"edge_hits"`
	SizeBytes      uint64   `json:"size_bytes"`
	TotalReward    float64  `json:"total_reward"`
	LastReward     float64  `json:"last_reward"`
	ExecTimeMs     uint64   `json:"exec_time_ms"`
	NumMutations   uint64   `json:"num_mutations"`
	LastSelectedTS *uint64  `json:"last_selected_ts"`
}

type metadata struct {
	NextID  uint64  `json:"next_id"`
	Entries []Entry `json:"entries"`
}

// Selection is what PickRandom hands to the fuzz loop.
type Selection struct {
	ID   uint64
	Path string
}

// Manager owns the corpus directory. One mutex orders all access,
// including metadata persistence; the fuzz loop is the only writer but
// result handlers run concurrently.
type Manager struct {
	mu       sync.Mutex
	root     string
	metaPath string
	entries  []Entry
	nextID   uint64
	rnd      *rand.Rand
}

// Load opens (or creates) a corpus directory and reads its metadata.
func Load(root string, rnd *rand.Rand) (*Manager, error) {
	if err := osutil.MkdirAll(root); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory %v: %w", root, err)
	}
	mgr := &Manager{
		root:     root,
		metaPath: filepath.Join(root, metadataFile),
		rnd:      rnd,
	}
	blob, err := os.ReadFile(mgr.metaPath)
	if os.IsNotExist(err) || (err == nil && len(blob) == 0) {
		return mgr, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus metadata: %w", err)
	}
	var meta metadata
	if err := json.Unmarshal(blob, &meta); err != nil {
		return nil, fmt.Errorf("failed to deserialize corpus metadata: %w", err)
	}
	mgr.entries = meta.Entries
	mgr.nextID = meta.NextID
	for _, entry := range meta.Entries {
		if entry.ID >= mgr.nextID {
			mgr.nextID = entry.ID + 1
		}
	}
	return mgr, nil
}

func (mgr *Manager) Root() string {
	return mgr.root
}

func (mgr *Manager) Len() int {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return len(mgr.entries)
}

func (mgr *Manager) ContainsFingerprint(fingerprint uint64) bool {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return mgr.findFingerprint(fingerprint)
}

func (mgr *Manager) findFingerprint(fingerprint uint64) bool {
	for i := range mgr.entries {
		if mgr.entries[i].Fingerprint == fingerprint {
			return true
		}
	}
	return false
}

// PickRandom selects a seed uniformly, bumping its selection counters.
// Uniform selection is deliberate: reward-weighted seed scheduling is a
// future refinement and uniformity keeps experiments reproducible.
func (mgr *Manager) PickRandom() *Selection {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if len(mgr.entries) == 0 {
		return nil
	}
	entry := &mgr.entries[mgr.rnd.Intn(len(mgr.entries))]
	entry.NumMutations++
	now := uint64(time.Now().Unix())
	entry.LastSelectedTS = &now
	return &Selection{ID: entry.ID, Path: filepath.Join(mgr.root, entry.Path)}
}

// RecordResult folds an execution reward back into the seed's stats.
func (mgr *Manager) RecordResult(id uint64, reward float64, execTime time.Duration) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for i := range mgr.entries {
		if mgr.entries[i].ID != id {
			continue
		}
		mgr.entries[i].LastReward = reward
		mgr.entries[i].TotalReward += reward
		mgr.entries[i].ExecTimeMs = uint64(execTime.Milliseconds())
		return mgr.persistLocked()
	}
	return nil
}

// AddEntry admits a new seed, unless its fingerprint is already present.
// Timeout inputs are never admitted: they go to the timeouts sidecar and
// nil is returned.
func (mgr *Manager) AddEntry(script []byte, edgeHits []uint32, reward float64,
	execTime time.Duration, isTimeout bool) (*Entry, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	fingerprint := Fingerprint(script, edgeHits)
	if mgr.findFingerprint(fingerprint) {
		return nil, nil
	}

	id := mgr.nextID
	mgr.nextID++
	fileName := fmt.Sprintf("seed_%d.js", id)

	if isTimeout {
		log.Logf(1, "storing timeout entry %v", fileName)
		dir := filepath.Join(mgr.root, timeoutsDir)
		if err := osutil.MkdirAll(dir); err != nil {
			return nil, err
		}
		if err := osutil.WriteFile(filepath.Join(dir, fileName), script); err != nil {
			return nil, fmt.Errorf("failed to write timeout entry: %w", err)
		}
		return nil, nil
	}

	if err := osutil.WriteFile(filepath.Join(mgr.root, fileName), script); err != nil {
		return nil, fmt.Errorf("failed to write corpus entry: %w", err)
	}
	entry := Entry{
		ID:          id,
		Path:        fileName,
		Fingerprint: fingerprint,
		EdgeHits:    edgeHits,
		SizeBytes:   uint64(len(script)),
		TotalReward: max(reward, 0),
		LastReward:  reward,
		ExecTimeMs:  uint64(execTime.Milliseconds()),
	}
	mgr.entries = append(mgr.entries, entry)
	if err := mgr.persistLocked(); err != nil {
		return nil, err
	}
	return &entry, nil
}

// PersistTimeout writes a timed-out script to the timeouts sidecar under
// a fresh seed id, without admitting it.
func (mgr *Manager) PersistTimeout(script []byte) error {
	_, err := mgr.AddEntry(script, nil, 0, 0, true)
	return err
}

// RemoveEntry drops a seed (e.g. one that no longer parses) and its file.
func (mgr *Manager) RemoveEntry(id uint64) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for i := range mgr.entries {
		if mgr.entries[i].ID != id {
			continue
		}
		path := filepath.Join(mgr.root, mgr.entries[i].Path)
		mgr.entries = append(mgr.entries[:i], mgr.entries[i+1:]...)
		if osutil.IsExist(path) {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove corpus entry %v: %w", path, err)
			}
		}
		return mgr.persistLocked()
	}
	return nil
}

// PersistCrash saves a crash reproducer before anything else is updated.
func (mgr *Manager) PersistCrash(script []byte, iter uint64) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	dir := filepath.Join(mgr.root, crashesDir)
	if err := osutil.MkdirAll(dir); err != nil {
		return err
	}
	name := filepath.Join(dir, fmt.Sprintf("crash_%d.js", iter))
	if err := osutil.WriteFile(name, script); err != nil {
		return fmt.Errorf("failed to persist crash: %w", err)
	}
	return nil
}

// GetRandomScript loads and parses a uniformly chosen seed, for use as a
// splice donor. Selection stats are not bumped.
func (mgr *Manager) GetRandomScript() (*js.AST, error) {
	mgr.mu.Lock()
	if len(mgr.entries) == 0 {
		mgr.mu.Unlock()
		return nil, nil
	}
	entry := mgr.entries[mgr.rnd.Intn(len(mgr.entries))]
	path := filepath.Join(mgr.root, entry.Path)
	mgr.mu.Unlock()

	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus entry %v: %w", path, err)
	}
	return js.Parse(script)
}

// persistLocked writes metadata via a sibling temp file and an atomic
// rename. Callers hold mgr.mu.
func (mgr *Manager) persistLocked() error {
	blob, err := json.MarshalIndent(&metadata{
		NextID:  mgr.nextID,
		Entries: mgr.entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize corpus metadata: %w", err)
	}
	return osutil.WriteTempFile(mgr.metaPath, blob)
}

// Fingerprint is a 64-bit digest of the script bytes and its edge set.
// The contract is only uniqueness-within-corpus and cheap equality.
func Fingerprint(script []byte, edgeHits []uint32) uint64 {
	d := xxhash.New()
	d.Write(script)
	var buf [4]byte
	for _, edge := range edgeHits {
		binary.LittleEndian.PutUint32(buf[:], edge)
		d.Write(buf[:])
	}
	return d.Sum64()
}
