// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cover

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerStableSubset(t *testing.T) {
	tr := NewTracker(3)
	// First run reported {17, 93}, re-run reported {93, 404}.
	stable, blacklisted := tr.Update([]uint32{17, 93}, []uint32{93, 404})
	assert.Equal(t, []uint32{93}, stable)
	assert.Empty(t, blacklisted)
	assert.True(t, tr.Seen(93))
	assert.False(t, tr.Seen(17))
	assert.False(t, tr.Seen(404))
}

func TestTrackerDedup(t *testing.T) {
	tr := NewTracker(3)
	stable, _ := tr.Update([]uint32{5}, []uint32{5})
	assert.Equal(t, []uint32{5}, stable)
	// A second stable sighting of the same edge is no longer new.
	stable, _ = tr.Update([]uint32{5}, []uint32{5})
	assert.Empty(t, stable)
}

func TestTrackerBlacklist(t *testing.T) {
	tr := NewTracker(2)
	_, blacklisted := tr.Update([]uint32{7}, nil)
	assert.Empty(t, blacklisted)
	_, blacklisted = tr.Update([]uint32{7}, nil)
	assert.Equal(t, []uint32{7}, blacklisted)
	assert.True(t, tr.Blacklisted(7))

	// A blacklisted edge never contributes to new coverage again,
	// even if it suddenly looks stable.
	stable, blacklisted := tr.Update([]uint32{7}, []uint32{7})
	assert.Empty(t, stable)
	assert.Empty(t, blacklisted)
}

func TestTrackerSymmetricDifference(t *testing.T) {
	tr := NewTracker(10)
	tr.Update([]uint32{1, 2}, []uint32{2, 3})
	// 1 and 3 are unstable, 2 is stable.
	assert.False(t, tr.Blacklisted(1))
	assert.True(t, tr.Seen(2))
	for i := 0; i < 9; i++ {
		tr.Update([]uint32{1}, nil)
	}
	assert.True(t, tr.Blacklisted(1))
}
