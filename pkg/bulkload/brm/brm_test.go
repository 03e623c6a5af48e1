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

package brm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/bulkimport/pkg/bulkload/coltype"
)

func TestAllocateExtentAdvancesHWMByRowsPerExtent(t *testing.T) {
	b := NewInMemory([]int{1})
	first, err := b.AllocateExtent(10, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(0), first.LocalHWM)

	second, err := b.AllocateExtent(10, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(coltype.RowsPerExtent(4)), second.LocalHWM)
}

func TestAllocateExtentTracksWidthsIndependently(t *testing.T) {
	b := NewInMemory([]int{1})
	_, err := b.AllocateExtent(10, 4)
	require.NoError(t, err)
	loc8, err := b.AllocateExtent(11, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(0), loc8.LocalHWM, "width 8's extent sequence is independent of width 4's")
}

func TestPublishHWMThenCurrentLocationRoundTrips(t *testing.T) {
	b := NewInMemory([]int{1})
	loc := Location{DBRoot: 1, Partition: 0, Segment: 2, LocalHWM: 500}
	require.NoError(t, b.PublishHWM(10, loc, []coltype.CPAccumulator{{MaxI: 9}}))

	got, err := b.CurrentLocation(10)
	require.NoError(t, err)
	require.Equal(t, loc, got)
}

func TestDbRootIdsReturnsACopy(t *testing.T) {
	b := NewInMemory([]int{1, 2, 3})
	roots := b.DbRootIds()
	roots[0] = 99
	require.Equal(t, []int{1, 2, 3}, b.DbRootIds())
}

func TestSyncAutoIncStoresPerColumn(t *testing.T) {
	b := NewInMemory([]int{1})
	require.NoError(t, b.SyncAutoInc(10, 500))
	require.NoError(t, b.SyncAutoInc(11, 9))
	// No getter is exposed, so the test reads the fake's map directly.
	require.Equal(t, int64(500), b.autoInc[10])
	require.Equal(t, int64(9), b.autoInc[11])
}

func TestGetTableLockGrantsThenBlocksUntilReleased(t *testing.T) {
	b := NewInMemory([]int{1})
	id, holder, err := b.GetTableLock(1, "p1", 100, 1, 1)
	require.NoError(t, err)
	require.NotZero(t, id)
	require.Zero(t, holder)

	_, holder2, err := b.GetTableLock(1, "p2", 200, 2, 2)
	require.NoError(t, err)
	require.Equal(t, "p1", holder2.ProcessName)

	require.NoError(t, b.ReleaseTableLock(id))
	id2, _, err := b.GetTableLock(1, "p2", 200, 2, 2)
	require.NoError(t, err)
	require.NotZero(t, id2)
}
