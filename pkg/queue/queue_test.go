// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsfuzz/jsfuzz/pkg/cover"
	"github.com/jsfuzz/jsfuzz/pkg/profile"
	"github.com/jsfuzz/jsfuzz/pkg/testutil"
)

func TestMain(m *testing.M) {
	if os.Getenv(testutil.FakeEngineEnv) == "1" {
		testutil.FakeEngineMain()
	}
	os.Setenv(testutil.FakeEngineEnv, "1")
	os.Exit(m.Run())
}

func testPool(t *testing.T, workers int) (*Pool, *cover.Tracker) {
	exe, err := os.Executable()
	require.NoError(t, err)
	prof := &profile.Profile{
		Name:            "fake",
		Path:            exe,
		TimeoutMs:       200,
		QueueSize:       4,
		ExecsPerProcess: 1000,
	}
	tracker := cover.NewTracker(3)
	ctx, cancel := context.WithCancel(context.Background())
	pool, err := NewPool(ctx, prof, tracker, workers)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		pool.Shutdown()
	})
	return pool, tracker
}

func TestCleanExecution(t *testing.T) {
	pool, _ := testPool(t, 1)
	res, err := pool.Execute(context.Background(), []byte("plain script"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.IsCrash)
	assert.False(t, res.IsTimeout)
	assert.False(t, res.NewCoverage)
	assert.Empty(t, res.EdgeHits)
}

func TestStableNewCoverage(t *testing.T) {
	pool, tracker := testPool(t, 1)
	res, err := pool.Execute(context.Background(), []byte("edge:5 edge:17"))
	require.NoError(t, err)
	assert.True(t, res.NewCoverage)
	assert.ElementsMatch(t, []uint32{5, 17}, res.EdgeHits)
	assert.True(t, tracker.Seen(5))
	assert.True(t, tracker.Seen(17))

	// The same coverage is not new a second time.
	res, err = pool.Execute(context.Background(), []byte("edge:5 edge:17 "))
	require.NoError(t, err)
	assert.False(t, res.NewCoverage)
	assert.Empty(t, res.EdgeHits)
}

func TestFlakyEdgeFiltered(t *testing.T) {
	pool, tracker := testPool(t, 1)
	// The fake engine reports a flaky edge only on every second run of
	// the script, so the stability re-check must discard it.
	res, err := pool.Execute(context.Background(), []byte("flaky:9"))
	require.NoError(t, err)
	assert.False(t, res.NewCoverage)
	assert.Empty(t, res.EdgeHits)
	assert.False(t, tracker.Seen(9))
}

func TestMixedStableAndFlaky(t *testing.T) {
	pool, tracker := testPool(t, 1)
	res, err := pool.Execute(context.Background(), []byte("edge:93 flaky:17"))
	require.NoError(t, err)
	assert.True(t, res.NewCoverage)
	assert.Equal(t, []uint32{93}, res.EdgeHits)
	assert.True(t, tracker.Seen(93))
	assert.False(t, tracker.Seen(17))
}

func TestTimeoutResult(t *testing.T) {
	pool, _ := testPool(t, 1)
	res, err := pool.Execute(context.Background(), []byte("hang"))
	require.NoError(t, err)
	assert.True(t, res.IsTimeout)
	assert.False(t, res.IsCrash)
	assert.False(t, res.NewCoverage)
	assert.Empty(t, res.EdgeHits)

	// The worker restarted its child and keeps serving.
	res, err = pool.Execute(context.Background(), []byte("exit:3"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestCrashResult(t *testing.T) {
	pool, _ := testPool(t, 1)
	res, err := pool.Execute(context.Background(), []byte("die"))
	require.NoError(t, err)
	assert.True(t, res.IsCrash)
	assert.Equal(t, -1, res.ExitCode)
	assert.Equal(t, -1, res.Signal)

	res, err = pool.Execute(context.Background(), []byte("all good"))
	require.NoError(t, err)
	assert.False(t, res.IsCrash)
}

func TestReportedSignal(t *testing.T) {
	pool, _ := testPool(t, 1)
	res, err := pool.Execute(context.Background(), []byte("sig:11"))
	require.NoError(t, err)
	assert.Equal(t, 11, res.Signal)
}

func TestParallelScheduling(t *testing.T) {
	pool, _ := testPool(t, 2)
	ctx := context.Background()
	var chans []<-chan *Result
	for i := 0; i < 16; i++ {
		c, err := pool.Schedule(ctx, []byte("plain"))
		require.NoError(t, err)
		chans = append(chans, c)
	}
	for _, c := range chans {
		select {
		case res := <-c:
			assert.Equal(t, 0, res.ExitCode)
		case <-time.After(10 * time.Second):
			t.Fatal("result never arrived")
		}
	}
}
