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

// Package brm defines the BRM (Block Resolution Manager) client
// surface the table controller depends on: extent allocation, HWM
// publish, location and DBRoot queries, auto-increment sync, and
// table-lock management. It has no dictionary LBID lookup. The
// production client talks to the real BRM service; InMemory below is a
// single-process fake used by tests and by distributed mode 0.
package brm

import (
	"sync"

	"github.com/colstore/bulkimport/pkg/bulkload/coltype"
	"github.com/colstore/bulkimport/pkg/bulkload/tablelock"
)

// Location is a segment's addressing triple plus HWM, the unit BRM
// tracks per column.
type Location struct {
	DBRoot, Partition, Segment int
	LocalHWM                   uint64
}

// Client is the full surface the table controller needs from BRM.
type Client interface {
	tablelock.BRM

	// AllocateExtent reserves the next extent for a column, returning
	// its starting Location.
	AllocateExtent(colOID uint32, width int) (Location, error)

	// PublishHWM pushes a column's final HWM and its completed-extent CP
	// history, implementing finishBRM (spec §4.5 step 6).
	PublishHWM(colOID uint32, loc Location, cpHistory []coltype.CPAccumulator) error

	// CurrentLocation returns a column's last-published Location, the
	// starting point for validateColumnHWMs and for rollback snapshots.
	CurrentLocation(colOID uint32) (Location, error)

	// DbRootIds returns the DBRoots currently assigned to this node,
	// compared against a rollback snapshot's OrigDbRootIds.
	DbRootIds() []int

	// SyncAutoInc publishes a column's next auto-increment value to the
	// catalog, implementing synchronizeAutoInc (spec §4.5 step 3).
	SyncAutoInc(colOID uint32, nextValue int64) error
}

// InMemory is a Client backed by process memory: every call just reads
// or writes a map under a mutex. Good enough to drive the table
// controller's unit tests without a real BRM service.
type InMemory struct {
	mu sync.Mutex

	locations map[uint32]Location
	autoInc   map[uint32]int64
	dbRoots   []int

	nextExtentByWidth map[int]int64

	lockHolder map[uint32]tablelock.Holder
	lockID     map[uint32]int64
	nextLockID int64
}

// NewInMemory builds an InMemory fake owning dbRoots.
func NewInMemory(dbRoots []int) *InMemory {
	return &InMemory{
		locations:         make(map[uint32]Location),
		autoInc:           make(map[uint32]int64),
		dbRoots:           dbRoots,
		nextExtentByWidth: make(map[int]int64),
		lockHolder:        make(map[uint32]tablelock.Holder),
		lockID:            make(map[uint32]int64),
	}
}

func (b *InMemory) AllocateExtent(colOID uint32, width int) (Location, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := coltype.RowsPerExtent(width)
	hwm := b.nextExtentByWidth[width]
	b.nextExtentByWidth[width] += rows
	loc := Location{DBRoot: b.dbRoots[0], Partition: 0, Segment: int(colOID), LocalHWM: uint64(hwm)}
	b.locations[colOID] = loc
	return loc, nil
}

func (b *InMemory) PublishHWM(colOID uint32, loc Location, cpHistory []coltype.CPAccumulator) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locations[colOID] = loc
	return nil
}

func (b *InMemory) CurrentLocation(colOID uint32) (Location, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locations[colOID], nil
}

func (b *InMemory) DbRootIds() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int, len(b.dbRoots))
	copy(out, b.dbRoots)
	return out
}

func (b *InMemory) SyncAutoInc(colOID uint32, nextValue int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoInc[colOID] = nextValue
	return nil
}

func (b *InMemory) GetTableLock(tableOID uint32, processName string, pid int, sessionID, txnID int64) (int64, tablelock.Holder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, held := b.lockID[tableOID]; held && id != 0 {
		return 0, b.lockHolder[tableOID], nil
	}
	b.nextLockID++
	b.lockID[tableOID] = b.nextLockID
	b.lockHolder[tableOID] = tablelock.Holder{ProcessName: processName, PID: pid, SessionID: sessionID}
	return b.nextLockID, tablelock.Holder{}, nil
}

func (b *InMemory) ReleaseTableLock(lockID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for oid, id := range b.lockID {
		if id == lockID {
			b.lockID[oid] = 0
			delete(b.lockHolder, oid)
		}
	}
	return nil
}
