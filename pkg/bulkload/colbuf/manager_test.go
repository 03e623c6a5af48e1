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

package colbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type memWriter struct {
	buf    []byte
	synced int
}

func (w *memWriter) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if int64(len(w.buf)) < end {
		grown := make([]byte, end)
		copy(grown, w.buf)
		w.buf = grown
	}
	copy(w.buf[off:end], p)
	return len(p), nil
}

func (w *memWriter) Truncate(size int64) error {
	if int64(len(w.buf)) > size {
		w.buf = w.buf[:size]
	}
	return nil
}

func (w *memWriter) Sync() error { w.synced++; return nil }

type stubAllocator struct {
	calls   int
	extents []ExtentInfo
}

func (a *stubAllocator) AllocateStripe(tableOID uint32, colWidths []int) ([]ExtentInfo, error) {
	a.calls++
	infos := make([]ExtentInfo, len(colWidths))
	for i := range colWidths {
		infos[i] = ExtentInfo{AllocSize: 4, HWM: 0}
	}
	return infos, nil
}

func TestReserveGrantsBytesAtCurrentHWM(t *testing.T) {
	w := &memWriter{}
	m := New(4, ExtentInfo{AllocSize: 8, HWM: 0}, w, &stubAllocator{}, 1, 0, 8)

	sec, _, err := m.Reserve(0, 3)
	require.NoError(t, err)
	require.Equal(t, 3, sec.RowCount)
	require.Len(t, sec.Bytes(), 12)
}

func TestReserveRejectsOutOfOrderStartRow(t *testing.T) {
	w := &memWriter{}
	m := New(4, ExtentInfo{AllocSize: 8, HWM: 0}, w, &stubAllocator{}, 1, 0, 8)

	_, _, err := m.Reserve(5, 2)
	require.NoError(t, err)
	_, _, err = m.Reserve(0, 1)
	require.Error(t, err)
}

func TestReserveClampsToRemainingRoomInExtent(t *testing.T) {
	w := &memWriter{}
	m := New(4, ExtentInfo{AllocSize: 8, HWM: 0}, w, &stubAllocator{}, 1, 0, 4)

	sec, _, err := m.Reserve(0, 10)
	require.NoError(t, err)
	require.Equal(t, 4, sec.RowCount, "extent only has room for 4 rows")
}

func TestReserveRollsToNewExtentWhenFull(t *testing.T) {
	w := &memWriter{}
	alloc := &stubAllocator{}
	// HWM is a byte offset (spec §4.6): 4 rows at width 4 means the
	// extent is full at HWM=16, not HWM=4.
	m := New(4, ExtentInfo{AllocSize: 4, HWM: 16}, w, alloc, 1, 0, 4)

	_, _, err := m.Reserve(0, 1)
	require.NoError(t, err)
	require.Equal(t, 1, alloc.calls, "extent was already at capacity so a new one was allocated")
}

func TestReleaseFlushesOnlyInInputRowOrder(t *testing.T) {
	w := &memWriter{}
	m := New(4, ExtentInfo{AllocSize: 16, HWM: 0}, w, &stubAllocator{}, 1, 0, 16)

	secA, _, _ := m.Reserve(0, 2)
	secB, _, _ := m.Reserve(2, 2)
	copy(secB.Bytes(), []byte{1, 1, 1, 1, 1, 1, 1, 1})
	copy(secA.Bytes(), []byte{2, 2, 2, 2, 2, 2, 2, 2})

	// Release the later section first: nothing should flush yet because
	// the earlier input row's section hasn't been released.
	require.NoError(t, m.Release(secB))
	require.Zero(t, w.synced)

	require.NoError(t, m.Release(secA))
	require.Equal(t, 2, w.synced, "releasing the earlier section unblocks both flushes in order")
	require.Equal(t, byte(2), w.buf[0])
	require.Equal(t, byte(1), w.buf[8])
}

func TestReleaseRejectsUnknownSection(t *testing.T) {
	w := &memWriter{}
	m := New(4, ExtentInfo{AllocSize: 16, HWM: 0}, w, &stubAllocator{}, 1, 0, 16)
	foreign := &Section{StartInputRow: 99}
	require.Error(t, m.Release(foreign))
}

func TestCurrentExtentTracksHWMAfterFlush(t *testing.T) {
	w := &memWriter{}
	m := New(4, ExtentInfo{AllocSize: 16, HWM: 0}, w, &stubAllocator{}, 1, 0, 16)

	sec, _, _ := m.Reserve(0, 3)
	require.NoError(t, m.Release(sec))
	// HWM is a byte offset (spec §4.6), so 3 rows at width 4 advances it
	// by 12, not 3.
	require.Equal(t, uint64(12), m.CurrentExtent().HWM)
}

func TestManagerResumesFromNonzeroByteHWM(t *testing.T) {
	w := &memWriter{}
	// A Manager constructed against a column that already has one row
	// written (4 bytes at width 4) must treat that as one row used, not
	// four, so Reserve grants rows from row 1 onward within the extent.
	m := New(4, ExtentInfo{AllocSize: 4, HWM: 4}, w, &stubAllocator{}, 1, 0, 4)

	sec, lastRowInExtent, err := m.Reserve(0, 10)
	require.NoError(t, err)
	require.Equal(t, 3, sec.RowCount, "only 3 rows of room remain in a 4-row extent already holding 1 row")
	require.Equal(t, int64(3), lastRowInExtent)
}

func TestCloseSyncsWriter(t *testing.T) {
	w := &memWriter{}
	m := New(4, ExtentInfo{AllocSize: 16, HWM: 0}, w, &stubAllocator{}, 1, 0, 16)
	require.NoError(t, m.Close())
	require.Equal(t, 1, w.synced)
}
