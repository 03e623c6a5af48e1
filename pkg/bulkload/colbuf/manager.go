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

// Package colbuf implements ColumnBufferManager (spec §4.2): the
// append-only writer that owns one column's current output extent,
// serving reserve/release under an internal lock so many parsers can
// fill their section of the file in parallel while flush order to disk
// stays identical to input-row order.
//
// The reserve/release split and the offset bookkeeping are grounded on
// objectio.ObjectWriter (pkg/objectio/writer.go), which
// hands out byte ranges via a buffer.Write(...) that returns
// (offset, length) while protecting block/extent bookkeeping with its
// own mutex; here the "block" is a Section of rows rather than an
// objectio Block, and flush must happen strictly in the order sections
// were reserved, which ObjectWriter does not need to guarantee.
package colbuf

import (
	"io"
	"sync"

	"github.com/colstore/bulkimport/pkg/bulkload/errcode"
)

// Section is a contiguous write region within one extent, issued by
// Manager.Reserve. At most one outstanding Section may exist for a
// given StartInputRow (spec §3 invariant).
type Section struct {
	StartInputRow        int64
	RowCount              int
	LastInputRowInExtent  int64
	byteOffset            int64
	width                 int
	data                  []byte
}

// Bytes is the caller's scratch buffer: the parser worker writes
// RowCount*width bytes here, then calls Manager.Release(section).
func (s *Section) Bytes() []byte { return s.data }

// Writer is the column's backing store: a plain append-only file in
// production, an in-memory buffer in tests. WriteAt must support
// concurrent calls at disjoint offsets.
type Writer interface {
	io.WriterAt
	Truncate(size int64) error
	Sync() error
}

// Manager owns one column's output extent. All public methods are
// internally synchronized; reserve/release may be called concurrently
// by many parser workers for the same column (never true in this
// engine, since a column is locked to one worker per buffer, but the
// manager is shared across all buffers in the ring, so distinct
// workers can legitimately call it back to back for different rows of
// the same column).
type Manager struct {
	mu sync.Mutex

	width         int
	rowsPerExtent int64
	writer        Writer
	alloc         Allocator
	tableOID      uint32
	colOrdinal    int

	extent            ExtentInfo
	rowsUsedInExtent   int64
	nextReserveRow     int64 // strictly increasing: next startInputRow that may be reserved

	pending    map[int64]*Section // outstanding, not yet released
	released   map[int64]*Section // released, waiting for their turn to flush
	flushRow   int64              // next startInputRow expected to flush
	flushInit  bool
}

// New constructs a Manager already owning extent, writing through w.
func New(width int, extent ExtentInfo, w Writer, alloc Allocator, tableOID uint32, colOrdinal int, rowsPerExtent int64) *Manager {
	return &Manager{
		width:         width,
		rowsPerExtent: rowsPerExtent,
		writer:        w,
		alloc:         alloc,
		tableOID:      tableOID,
		colOrdinal:    colOrdinal,
		extent:        extent,
		rowsUsedInExtent: int64(extent.HWM) / int64(width),
		pending:       make(map[int64]*Section),
		released:      make(map[int64]*Section),
	}
}

// Reserve reserves a contiguous write region sized to the lesser of
// requestedRows and the remaining rows in the current extent, in
// strictly non-decreasing StartInputRow order (spec §4.2). The returned
// int64 is the absolute input-row index at which the current extent
// runs out of room — the authoritative boundary the ValueConverter's CP
// rollover logic must roll on, since it stays correct even when this
// Manager was constructed against a column whose extent already held
// rows before this job started.
func (m *Manager) Reserve(startInputRow int64, requestedRows int) (*Section, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if startInputRow < m.nextReserveRow {
		return nil, 0, errcode.NewInvariant("reserve: startInputRow %d precedes nextReserveRow %d", startInputRow, m.nextReserveRow)
	}

	remaining := m.rowsPerExtent - m.rowsUsedInExtent
	if remaining <= 0 {
		if err := m.openNextExtentLocked(); err != nil {
			return nil, 0, err
		}
		remaining = m.rowsPerExtent - m.rowsUsedInExtent
	}

	granted := int64(requestedRows)
	if granted > remaining {
		granted = remaining
	}

	offset := m.rowsUsedInExtent * int64(m.width)
	sec := &Section{
		StartInputRow:       startInputRow,
		RowCount:             int(granted),
		LastInputRowInExtent: startInputRow + remaining,
		byteOffset:           offset,
		width:                m.width,
		data:                 make([]byte, granted*int64(m.width)),
	}
	m.rowsUsedInExtent += granted
	m.nextReserveRow = startInputRow + granted
	m.pending[startInputRow] = sec
	if !m.flushInit {
		m.flushRow = startInputRow
		m.flushInit = true
	}
	return sec, sec.LastInputRowInExtent, nil
}

// Release marks section's bytes flushable. Flush to the backing Writer
// happens as soon as the latest contiguous prefix of released sections
// (ordered by StartInputRow) advances — i.e. release is out-of-order
// safe, flush is not.
func (m *Manager) Release(sec *Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pending[sec.StartInputRow]; !ok {
		return errcode.NewInvariant("release: unknown or already-released section at row %d", sec.StartInputRow)
	}
	delete(m.pending, sec.StartInputRow)
	m.released[sec.StartInputRow] = sec

	return m.flushReadyLocked()
}

// flushReadyLocked writes every released Section in StartInputRow order
// for as long as the next expected row is present, advancing HWM as it
// goes. This is the FIFO-by-input-row flush order spec §4.2/§5 requires:
// a Section that finishes converting before an earlier one still waits
// for it.
func (m *Manager) flushReadyLocked() error {
	for {
		s, ok := m.released[m.flushRow]
		if !ok {
			break
		}
		if _, err := m.writer.WriteAt(s.data, s.byteOffset); err != nil {
			return errcode.NewReadIO(err)
		}
		if err := m.writer.Sync(); err != nil {
			return errcode.NewReadIO(err)
		}
		m.extent.HWM = uint64(m.hwmBytesAtRowLocked(s))
		delete(m.released, s.StartInputRow)
		m.flushRow = s.StartInputRow + int64(s.RowCount)
	}
	return nil
}

// hwmBytesAtRowLocked reports the extent HWM as a byte offset, not a
// row count: hwm.Validate's cross-width ratio check only holds if a
// width-8 column's HWM runs twice a width-4 column's for the same row
// count (spec §4.6).
func (m *Manager) hwmBytesAtRowLocked(s *Section) int64 {
	return s.byteOffset + int64(s.RowCount)*int64(m.width)
}

// openNextExtentLocked allocates the next extent for this column via
// BRM and resets the in-extent row counter.
func (m *Manager) openNextExtentLocked() error {
	infos, err := m.alloc.AllocateStripe(m.tableOID, []int{m.width})
	if err != nil {
		return errcode.NewExtentAlloc("", err)
	}
	m.extent = infos[0]
	m.rowsUsedInExtent = 0
	return nil
}

// HWM returns the column's current high-water mark.
func (m *Manager) HWM() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extent.HWM
}

// CurrentExtent returns a snapshot of the extent this column is
// currently writing, for HWM validation and bulk-rollback snapshotting.
func (m *Manager) CurrentExtent() ExtentInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extent
}

// Close syncs the backing Writer. It does not truncate the file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer.Sync()
}
