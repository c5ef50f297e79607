package rowfile

import (
	"encoding/binary"
	errs "errors"
	"fmt"
	"io"
	"os"

	"github.com/go-stdlog/stdlog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/heyvito/rowcursor/errors"
	"github.com/heyvito/rowcursor/internal/flock"
	"github.com/heyvito/rowcursor/internal/procutils"
)

// acquireLock obtains the sidecar advisory lock for a row file, recording
// the current PID in it. A lock file left behind by a dead or defunct
// process is taken over; one owned by a live process results in an
// errors.CannotAcquireLock.
func acquireLock(path string, log stdlog.Logger) (flock.Flock, error) {
	log.Debug("Acquiring row file lock", "path", path)
	lk, err := flock.New(path)
	if err != nil {
		return nil, err
	}
	if err = lk.Lock(); err != nil {
		_ = lk.Close()
		return nil, err
	}

	data := make([]byte, 8)
	n, err := lk.Read(data)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("failed reading lock file: %w", err)
		if unlockErr := lk.Unlock(); unlockErr != nil {
			return nil, errs.Join(err, unlockErr)
		}
		return nil, err
	}

	if n == 0 {
		return writePidToLock(lk)
	}

	pid := int(binary.BigEndian.Uint64(data))
	proc, err := process.NewProcess(int32(pid))
	if err != nil && errs.Is(err, process.ErrorProcessNotRunning) {
		return writePidToLock(lk)
	} else if err != nil {
		err = fmt.Errorf("failed querying pid %d: %w", pid, err)
		if unlockErr := lk.Unlock(); unlockErr != nil {
			return nil, errs.Join(err, unlockErr)
		}
		return nil, err
	}

	running, err := proc.IsRunning()
	if err != nil {
		err = fmt.Errorf("failed querying pid %d status: %w", pid, err)
		if unlockErr := lk.Unlock(); unlockErr != nil {
			return nil, errs.Join(err, unlockErr)
		}
		return nil, err
	}
	if !running {
		return writePidToLock(lk)
	}

	// A "running" entry may still be a zombie sitting in the process table.
	if state, stateErr := procutils.GetPIDState(pid); stateErr == nil &&
		state&procutils.StateDefunct == procutils.StateDefunct {
		log.Debug("Lock owner is defunct, taking lock over", "pid", pid)
		return writePidToLock(lk)
	}

	if pid == os.Getpid() {
		// PID reuse in containerized environments can hand us back our own
		// static PID. We are virtually the process that wrote the record.
		return writePidToLock(lk)
	}

	if unlockErr := lk.Unlock(); unlockErr != nil {
		return nil, unlockErr
	}
	return nil, errors.CannotAcquireLock{PID: pid}
}

func writePidToLock(lk flock.Flock) (flock.Flock, error) {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(os.Getpid()))
	if err := lk.Write(data); err != nil {
		err = fmt.Errorf("failed writing current pid to lock file: %w", err)
		if unlockErr := lk.Unlock(); unlockErr != nil {
			return nil, errs.Join(err, unlockErr)
		}
		return nil, err
	}
	return lk, nil
}
