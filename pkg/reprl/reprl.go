// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package reprl drives one JavaScript engine child process over the REPRL
// persistent execution protocol: four pipes inherited at fixed descriptor
// numbers plus a shared memory coverage region identified by SHM_ID.
package reprl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Child-side descriptor numbers fixed by the REPRL harness.
const (
	controlReadFD  = 100 // child reads commands
	controlWriteFD = 101 // child writes status
	dataReadFD     = 102 // child reads program bytes
	dataWriteFD    = 103 // child writes its own output
)

// ErrTimeout is returned by Execute when the engine fails to report a
// status before the configured deadline. The child has already been killed
// and reaped when Execute returns it.
var ErrTimeout = errors.New("execution timed out")

type Config struct {
	Path    string
	Args    []string
	Timeout time.Duration
	// MaxExecutions bounds how many scripts one child runs before it is
	// transparently restarted. Long-lived engines accumulate memory and
	// get stochastically slower.
	MaxExecutions int
	ShmID         string
}

// Status is the decoded 4-byte execution status: the low byte carries the
// terminating signal, the next byte the exit code.
type Status struct {
	ExitCode int
	Signal   int
}

// Process is a handle to one engine child. Not safe for concurrent use;
// each worker owns exactly one Process.
type Process struct {
	cfg   Config
	child *os.Process

	ctrlW *os.File // commands to the child
	ctrlR *os.File // status from the child
	dataW *os.File // program bytes to the child
	dataR *os.File // engine output from the child

	execs int
}

func Spawn(cfg Config) (*Process, error) {
	p := &Process{cfg: cfg}
	if err := p.launch(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Process) launch() error {
	ctrlToChild, err := newPipe()
	if err != nil {
		return err
	}
	ctrlFromChild, err := newPipe()
	if err != nil {
		ctrlToChild.close()
		return err
	}
	dataToChild, err := newPipe()
	if err != nil {
		ctrlToChild.close()
		ctrlFromChild.close()
		return err
	}
	dataFromChild, err := newPipe()
	if err != nil {
		ctrlToChild.close()
		ctrlFromChild.close()
		dataToChild.close()
		return err
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %v: %w", os.DevNull, err)
	}
	defer devNull.Close()

	// os.StartProcess maps slice index to child descriptor number, which
	// lets us plant the pipe ends exactly at fds 100..103 (and clears
	// close-on-exec along the way).
	files := make([]*os.File, dataWriteFD+1)
	files[0], files[1], files[2] = devNull, devNull, devNull
	files[controlReadFD] = ctrlToChild.r
	files[controlWriteFD] = ctrlFromChild.w
	files[dataReadFD] = dataToChild.r
	files[dataWriteFD] = dataFromChild.w

	env := append(os.Environ(),
		"REPRL_MODE=1",
		"SHM_ID="+p.cfg.ShmID,
	)
	child, err := os.StartProcess(p.cfg.Path, append([]string{p.cfg.Path}, p.cfg.Args...), &os.ProcAttr{
		Env:   env,
		Files: files,
	})
	// The child ends are dup'ed into the child (or the spawn failed);
	// either way the parent must drop them.
	ctrlToChild.r.Close()
	ctrlFromChild.w.Close()
	dataToChild.r.Close()
	dataFromChild.w.Close()
	if err != nil {
		ctrlToChild.w.Close()
		ctrlFromChild.r.Close()
		dataToChild.w.Close()
		dataFromChild.r.Close()
		return fmt.Errorf("failed to start %v: %w", p.cfg.Path, err)
	}

	p.child = child
	p.ctrlW = ctrlToChild.w
	p.ctrlR = ctrlFromChild.r
	p.dataW = dataToChild.w
	p.dataR = dataFromChild.r
	return nil
}

// Handshake performs the HELO exchange. Any deviation from the protocol is
// fatal for this child.
func (p *Process) Handshake() error {
	var buf [4]byte
	if _, err := io.ReadFull(p.ctrlR, buf[:]); err != nil {
		return fmt.Errorf("failed to read HELO from engine: %w", err)
	}
	if string(buf[:]) != "HELO" {
		return fmt.Errorf("bad HELO from engine: %q", buf[:])
	}
	if _, err := p.ctrlW.Write([]byte("HELO")); err != nil {
		return fmt.Errorf("failed to write HELO to engine: %w", err)
	}
	return nil
}

// Execute runs one script in the engine and returns its decoded status.
// A zero-length read on the control pipe means the child died; the caller
// should treat it as a crash and Restart. ErrTimeout means the deadline
// fired and the child was killed.
func (p *Process) Execute(script []byte) (Status, error) {
	if p.cfg.MaxExecutions > 0 && p.execs >= p.cfg.MaxExecutions {
		if err := p.Restart(); err != nil {
			return Status{}, err
		}
		if err := p.Handshake(); err != nil {
			return Status{}, err
		}
	}
	var hdr [12]byte
	copy(hdr[:4], "exec")
	binary.LittleEndian.PutUint64(hdr[4:], uint64(len(script)))
	if _, err := p.ctrlW.Write(hdr[:]); err != nil {
		return Status{}, fmt.Errorf("failed to write exec command: %w", err)
	}
	if _, err := p.dataW.Write(script); err != nil {
		return Status{}, fmt.Errorf("failed to write script: %w", err)
	}
	var status [4]byte
	if err := p.readStatus(status[:]); err != nil {
		return Status{}, err
	}
	p.execs++
	raw := binary.LittleEndian.Uint32(status[:])
	return Status{
		Signal:   int(raw & 0xff),
		ExitCode: int((raw >> 8) & 0xff),
	}, nil
}

// readStatus reads the 4-byte status bounded by the configured timeout.
// The control read is switched to non-blocking and polled with a 1ms
// back-off; the original flags are restored on exit.
func (p *Process) readStatus(buf []byte) error {
	if p.cfg.Timeout <= 0 {
		_, err := io.ReadFull(p.ctrlR, buf)
		return err
	}
	fd := int(p.ctrlR.Fd())
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return fmt.Errorf("fcntl(F_GETFL): %w", err)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
		return fmt.Errorf("fcntl(F_SETFL): %w", err)
	}
	defer unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags)

	deadline := time.Now().Add(p.cfg.Timeout)
	offset := 0
	for offset < len(buf) {
		n, err := unix.Read(fd, buf[offset:])
		switch {
		case n > 0:
			offset += n
		case n == 0 && err == nil:
			return fmt.Errorf("engine closed status pipe: %w", io.ErrUnexpectedEOF)
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			if time.Now().After(deadline) {
				// Tear down the hung child so it doesn't block future jobs.
				p.Kill()
				return ErrTimeout
			}
			time.Sleep(time.Millisecond)
		default:
			return fmt.Errorf("failed to read status: %w", err)
		}
	}
	return nil
}

// Restart kills and reaps the child and spawns a fresh one with the same
// configuration. The caller must Handshake afterwards. Safe to call on the
// fast path.
func (p *Process) Restart() error {
	p.Kill()
	p.closePipes()
	if err := p.launch(); err != nil {
		return err
	}
	p.execs = 0
	return nil
}

// Kill terminates and reaps the child. Idempotent.
func (p *Process) Kill() {
	if p.child == nil {
		return
	}
	p.child.Kill()
	p.child.Wait()
	p.child = nil
}

// Shutdown kills the child and releases the parent pipe ends.
func (p *Process) Shutdown() {
	p.Kill()
	p.closePipes()
}

// DrainOutput reads whatever the engine has printed so far without
// blocking. Used by diagnostic modes.
func (p *Process) DrainOutput() []byte {
	fd := int(p.dataR.Fd())
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return nil
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
		return nil
	}
	defer unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags)
	var out []byte
	var buf [4096]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n <= 0 || err != nil {
			break
		}
		out = append(out, buf[:n]...)
	}
	return out
}

func (p *Process) closePipes() {
	for _, f := range []*os.File{p.ctrlW, p.ctrlR, p.dataW, p.dataR} {
		if f != nil {
			f.Close()
		}
	}
	p.ctrlW, p.ctrlR, p.dataW, p.dataR = nil, nil, nil, nil
}

type pipePair struct {
	r, w *os.File
}

func newPipe() (pipePair, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return pipePair{}, fmt.Errorf("failed to create pipe: %w", err)
	}
	return pipePair{r: r, w: w}, nil
}

func (p pipePair) close() {
	p.r.Close()
	p.w.Close()
}
