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

// Package rowbuf is the ring of shared row buffers: one reader fills a
// buffer, many column-parser workers drain it, one column at a time
// (spec §3 RowBuffer, §5 CONCURRENCY & RESOURCE MODEL).
package rowbuf

import "github.com/RoaringBitmap/roaring"

// Status is a RowBuffer's lifecycle state. It advances only in the
// sequence NEW -> READ_IN_PROGRESS -> READ_COMPLETE -> PARSE_COMPLETE
// -> NEW (reused), per spec invariant in §3.
type Status int

const (
	StatusNew Status = iota
	ReadInProgress
	ReadComplete
	ParseComplete
)

// ColumnStatus is one (buffer, column) cell's parse state.
type ColumnStatus int

const (
	ColNew ColumnStatus = iota
	ColParseInProgress
	ColParseComplete
)

// noLocker is the sentinel columnLocker value meaning "unlocked".
const noLocker = -1

// Row holds one row's raw input: either a delimited text line or a
// fixed-length binary record. Parquet bypasses RowBuffer entirely (spec
// §4.1 readParquetData) and is modeled by pkg/bulkload/source instead.
type Row struct {
	Raw       []byte
	RowNumber uint64 // 1-based input row number, for reject reporting
}

// Buffer is one ring slot: raw rows plus a per-column status/locker
// cell. columnLocker/columnStatus are indexed by column ordinal.
type Buffer struct {
	Status       Status
	Rows         []Row
	RowCount     int
	LastRowInBuf bool // true if this buffer held the final input row

	// ErrorRows marks row indexes the reader found malformed while
	// filling this buffer (e.g. a truncated trailing binary record); the
	// table reader drains them to the reject sink. Parsers do not consult
	// it. Mirrors the per-buffer error bitmap role pkg/container/nulls
	// plays elsewhere in this storage stack for value-level nulls.
	ErrorRows *roaring.Bitmap

	columnLocker []int
	columnStatus []ColumnStatus
}

func newBuffer(numCols int, rowsCap int) *Buffer {
	b := &Buffer{
		Status:       StatusNew,
		Rows:         make([]Row, 0, rowsCap),
		ErrorRows:    roaring.New(),
		columnLocker: make([]int, numCols),
		columnStatus: make([]ColumnStatus, numCols),
	}
	b.resetColumns()
	return b
}

func (b *Buffer) resetColumns() {
	for i := range b.columnLocker {
		b.columnLocker[i] = noLocker
	}
	for i := range b.columnStatus {
		b.columnStatus[i] = ColNew
	}
}

// reclaim returns the buffer to NEW, ready for reuse, clearing rows and
// per-column cells. Called by Ring.WaitForFreeSlot under Ring.Mu when
// the buffer's slot is claimed for the next read.
func (b *Buffer) reclaim() {
	b.Status = StatusNew
	b.Rows = b.Rows[:0]
	b.RowCount = 0
	b.LastRowInBuf = false
	b.ErrorRows.Clear()
	b.resetColumns()
}

// TryLockColumn attempts to lock column col for workerID. Returns false
// if another worker already holds it or it is already ParseComplete —
// callers must tolerate losing this race (spec §4.1 parser contract).
func (b *Buffer) TryLockColumn(col, workerID int) bool {
	if b.columnStatus[col] != ColNew {
		return false
	}
	if b.columnLocker[col] != noLocker {
		return false
	}
	b.columnLocker[col] = workerID
	b.columnStatus[col] = ColParseInProgress
	return true
}

// SetColumnComplete marks col done and reports whether every column in
// this buffer is now ParseComplete (the buffer-level transition spec
// §3 describes).
func (b *Buffer) SetColumnComplete(col int) bool {
	b.columnStatus[col] = ColParseComplete
	for _, s := range b.columnStatus {
		if s != ColParseComplete {
			return false
		}
	}
	return true
}

// NumColumns reports the configured column count.
func (b *Buffer) NumColumns() int { return len(b.columnStatus) }
