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

// Package tablelock implements the table-lock lifecycle of spec §4.8:
// poll-acquire against a BRM-held lock table, and idempotent release.
package tablelock

import (
	"context"
	"time"

	"github.com/colstore/bulkimport/pkg/bulkload/errcode"
)

// DistMode mirrors the distributed-processing modes spec §4.8
// references; modes 1 and 2 make releaseTableLock a no-op because lock
// ownership there belongs to a coordinator outside this process.
type DistMode int

const (
	DistModeNone DistMode = 0
	DistModeReport DistMode = 1
	DistModeWorker DistMode = 2
)

// Holder identifies the current lock holder, reported on a failed
// acquire attempt.
type Holder struct {
	ProcessName string
	PID         int
	SessionID   int64
}

// BRM is the subset of the BRM client table-lock acquisition needs.
type BRM interface {
	GetTableLock(tableOID uint32, processName string, pid int, sessionID, txnID int64) (lockID int64, holder Holder, err error)
	ReleaseTableLock(lockID int64) error
}

const pollInterval = 100 * time.Millisecond

// Acquire implements acquireTableLock: retries GetTableLock every
// 100ms until it returns a nonzero lockID, waitPeriod elapses, or ctx is
// canceled. waitPeriod<=0 with disableTimeOut=true waits forever (until
// ctx cancellation).
func Acquire(ctx context.Context, brm BRM, tableOID uint32, processName string, pid int, sessionID, txnID int64, waitPeriod time.Duration, disableTimeOut bool) (lockID int64, err error) {
	var deadline time.Time
	if !disableTimeOut {
		deadline = time.Now().Add(waitPeriod)
	}

	var lastHolder Holder
	for {
		id, holder, err := brm.GetTableLock(tableOID, processName, pid, sessionID, txnID)
		if err != nil {
			return 0, err
		}
		if id != 0 {
			return id, nil
		}
		lastHolder = holder

		if !disableTimeOut && !time.Now().Add(pollInterval).Before(deadline) {
			return 0, errcode.NewTblLockGetLockLocked(tableOID, lastHolder.ProcessName)
		}

		select {
		case <-ctx.Done():
			return 0, errcode.NewTblLockGetLockLocked(tableOID, lastHolder.ProcessName)
		case <-time.After(pollInterval):
		}
	}
}

// Release implements releaseTableLock: a no-op returning
// (released=false, err=nil) in distributed modes 1 and 2, where lock
// ownership is coordinated externally. Idempotent: releasing an
// already-released lockID (0) succeeds with released=false (spec
// testable property 10).
func Release(brm BRM, mode DistMode, lockID int64) (released bool, err error) {
	if mode == DistModeReport || mode == DistModeWorker {
		return false, nil
	}
	if lockID == 0 {
		return false, nil
	}
	if err := brm.ReleaseTableLock(lockID); err != nil {
		return false, errcode.NewTblLockRelease(err)
	}
	return true, nil
}
