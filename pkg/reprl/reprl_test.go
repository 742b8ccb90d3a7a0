// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package reprl

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsfuzz/jsfuzz/pkg/testutil"
)

func TestMain(m *testing.M) {
	if os.Getenv(testutil.FakeEngineEnv) == "1" {
		testutil.FakeEngineMain()
	}
	os.Setenv(testutil.FakeEngineEnv, "1")
	os.Exit(m.Run())
}

func spawnFake(t *testing.T, timeout time.Duration, maxExecs int) *Process {
	exe, err := os.Executable()
	require.NoError(t, err)
	p, err := Spawn(Config{
		Path:          exe,
		Timeout:       timeout,
		MaxExecutions: maxExecs,
		ShmID:         "", // no coverage region for protocol-level tests
	})
	require.NoError(t, err)
	t.Cleanup(p.Shutdown)
	require.NoError(t, p.Handshake())
	return p
}

func TestExecuteStatus(t *testing.T) {
	p := spawnFake(t, time.Second, 0)

	status, err := p.Execute([]byte("nothing to see"))
	require.NoError(t, err)
	assert.Equal(t, Status{}, status)

	status, err = p.Execute([]byte("exit:7"))
	require.NoError(t, err)
	assert.Equal(t, Status{ExitCode: 7}, status)

	status, err = p.Execute([]byte("sig:11"))
	require.NoError(t, err)
	assert.Equal(t, Status{Signal: 11}, status)
}

func TestExecuteTimeout(t *testing.T) {
	p := spawnFake(t, 200*time.Millisecond, 0)

	start := time.Now()
	_, err := p.Execute([]byte("hang"))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)

	// The driver is usable again after a restart.
	require.NoError(t, p.Restart())
	require.NoError(t, p.Handshake())
	status, err := p.Execute([]byte("exit:1"))
	require.NoError(t, err)
	assert.Equal(t, Status{ExitCode: 1}, status)
}

func TestChildDeath(t *testing.T) {
	p := spawnFake(t, time.Second, 0)

	_, err := p.Execute([]byte("die"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)

	require.NoError(t, p.Restart())
	require.NoError(t, p.Handshake())
	_, err = p.Execute([]byte("ok"))
	require.NoError(t, err)
}

func TestExecutionBudget(t *testing.T) {
	p := spawnFake(t, time.Second, 3)
	for i := 0; i < 10; i++ {
		// The transparent restart after 3 executions must be invisible.
		status, err := p.Execute([]byte("exit:5"))
		require.NoError(t, err)
		assert.Equal(t, Status{ExitCode: 5}, status)
	}
}

func TestDrainOutput(t *testing.T) {
	p := spawnFake(t, time.Second, 0)
	_, err := p.Execute([]byte("print:hello"))
	require.NoError(t, err)
	// Give the pipe a moment; the fake engine writes before the status,
	// but the kernel does not promise ordering across pipes.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []byte("hello"), p.DrainOutput())
}
