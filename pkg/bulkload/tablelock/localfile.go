// Copyright 2021 Matrix Origin
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

package tablelock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// LocalFileLock is a single-node fallback for BRM: when a job runs
// against a local, non-distributed BRM (no network peers to coordinate
// a table lock with), an advisory flock on a per-table lock file in
// dir stands in for GetTableLock/ReleaseTableLock.
type LocalFileLock struct {
	f *os.File
}

// AcquireLocal takes an exclusive, non-blocking flock on
// "<dir>/<tableOID>.lock", creating the file if needed. If another
// holder already has the lock it returns flock's own error
// (EWOULDBLOCK), unwrapped.
func AcquireLocal(dir string, tableOID uint32) (*LocalFileLock, error) {
	path := fmt.Sprintf("%s/%d.lock", dir, tableOID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, err
	}
	return &LocalFileLock{f: f}, nil
}

// Release drops the flock and closes the lock file. Idempotent: a nil
// receiver or an already-closed lock is a no-op.
func (l *LocalFileLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return err
	}
	err := l.f.Close()
	l.f = nil
	return err
}
