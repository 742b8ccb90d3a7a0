// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build linux
// +build linux

package testutil

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// FakeEngineEnv marks a test binary re-execution as the fake engine child.
// Test packages that spawn engines install the hook in TestMain:
//
//	func TestMain(m *testing.M) {
//		if os.Getenv(testutil.FakeEngineEnv) == "1" {
//			testutil.FakeEngineMain()
//		}
//		os.Setenv(testutil.FakeEngineEnv, "1")
//		os.Exit(m.Run())
//	}
const FakeEngineEnv = "JSFUZZ_FAKE_ENGINE"

// FakeEngineEdges is the edge count the fake engine publishes in the
// shared memory header.
const FakeEngineEdges = 4096

// FakeEngineMain implements a minimal REPRL engine for tests. It speaks
// the real protocol on fds 100..103 and interprets the "script" it
// receives as a list of whitespace-separated directives:
//
//	edge:N    set coverage bit N
//	flaky:N   set coverage bit N on every second execution of this script
//	sig:N     report termination signal N
//	exit:N    report exit code N
//	hang      never report a status
//	die       exit without reporting a status
//	print:S   write S to the data-out pipe
//
// Anything else is ignored, which doubles as the "clean run" case.
// The function does not return.
func FakeEngineMain() {
	ctrlR := os.NewFile(100, "ctrl-r")
	ctrlW := os.NewFile(101, "ctrl-w")
	dataR := os.NewFile(102, "data-r")
	dataW := os.NewFile(103, "data-w")

	shm := openShm()
	if shm != nil {
		binary.LittleEndian.PutUint32(shm[:4], FakeEngineEdges)
	}

	if _, err := ctrlW.Write([]byte("HELO")); err != nil {
		os.Exit(1)
	}
	var buf [4]byte
	if _, err := io.ReadFull(ctrlR, buf[:]); err != nil || string(buf[:]) != "HELO" {
		os.Exit(1)
	}

	execCounts := make(map[string]int)
	for {
		if _, err := io.ReadFull(ctrlR, buf[:]); err != nil {
			os.Exit(0)
		}
		if string(buf[:]) != "exec" {
			os.Exit(1)
		}
		var lenBuf [8]byte
		if _, err := io.ReadFull(ctrlR, lenBuf[:]); err != nil {
			os.Exit(1)
		}
		script := make([]byte, binary.LittleEndian.Uint64(lenBuf[:]))
		if _, err := io.ReadFull(dataR, script); err != nil {
			os.Exit(1)
		}
		execCounts[string(script)]++
		status := runFakeScript(string(script), execCounts[string(script)], shm, dataW)
		var statusBuf [4]byte
		binary.LittleEndian.PutUint32(statusBuf[:], uint32(status))
		if _, err := ctrlW.Write(statusBuf[:]); err != nil {
			os.Exit(1)
		}
	}
}

func runFakeScript(script string, execs int, shm []byte, dataW *os.File) int {
	status := 0
	for _, tok := range strings.Fields(script) {
		key, val, _ := strings.Cut(tok, ":")
		switch key {
		case "edge":
			setFakeEdge(shm, val)
		case "flaky":
			if execs%2 == 1 {
				setFakeEdge(shm, val)
			}
		case "sig":
			n, _ := strconv.Atoi(val)
			status |= n & 0xff
		case "exit":
			n, _ := strconv.Atoi(val)
			status |= (n & 0xff) << 8
		case "hang":
			time.Sleep(time.Hour)
		case "die":
			os.Exit(1)
		case "print":
			fmt.Fprint(dataW, val)
		}
	}
	return status
}

func setFakeEdge(shm []byte, val string) {
	n, err := strconv.Atoi(val)
	if err != nil || shm == nil || n < 0 || n >= FakeEngineEdges {
		return
	}
	shm[4+n/8] |= 1 << (n % 8)
}

func openShm() []byte {
	id := os.Getenv("SHM_ID")
	if id == "" {
		return nil
	}
	f, err := os.OpenFile("/dev/shm/"+id, os.O_RDWR, 0)
	if err != nil {
		return nil
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil
	}
	mem, err := mmapFile(f, int(st.Size()))
	if err != nil {
		return nil
	}
	return mem
}
