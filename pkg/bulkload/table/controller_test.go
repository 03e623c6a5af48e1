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

package table

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/colstore/bulkimport/pkg/bulkload/brm"
	"github.com/colstore/bulkimport/pkg/bulkload/coltype"
	"github.com/colstore/bulkimport/pkg/bulkload/telemetry"
)

func newTestController(t *testing.T) (*Controller, *brm.InMemory) {
	ctl, client, _ := newTestControllerWithPath(t)
	return ctl, client
}

func newTestControllerWithPath(t *testing.T) (*Controller, *brm.InMemory, string) {
	client := brm.NewInMemory([]int{1})
	tele := telemetry.New(zap.NewNop())
	path := filepath.Join(t.TempDir(), "rollback.json")
	ctl := New(1, "t1", "bulkimport", 1, client, path, tele, zap.NewNop())
	return ctl, client, path
}

func TestAddColumnAssignsSequentialFieldIndexViaColumnCount(t *testing.T) {
	ctl, _ := newTestController(t)
	require.Equal(t, 0, ctl.ColumnCount())

	ci := coltype.NewInfo(coltype.Static{ColName: "a", WeType: coltype.WrInt, Width: 4})
	ctl.AddColumn(ci, nil, nil, ctl.ColumnCount())
	require.Equal(t, 1, ctl.ColumnCount())

	ci2 := coltype.NewInfo(coltype.Static{ColName: "b", WeType: coltype.WrInt, Width: 4})
	col2 := ctl.AddColumn(ci2, nil, nil, ctl.ColumnCount())
	require.Equal(t, 1, col2.FieldIndex)
}

func TestLockForReadSucceedsOnlyOnce(t *testing.T) {
	ctl, _ := newTestController(t)
	require.True(t, ctl.LockForRead(1))
	require.False(t, ctl.LockForRead(2), "a second reader cannot also claim the lock")
}

func TestSetParseErrorIsStickyAndRequestsShutdown(t *testing.T) {
	ctl, _ := newTestController(t)
	ctl.SetParseError()
	require.Equal(t, StatusErr, ctl.Status())
	require.True(t, ctl.shouldStop())
}

func TestRejectSinkIsLazilyCreatedOnce(t *testing.T) {
	ctl, _ := newTestController(t)
	s1 := ctl.RejectSink("in.tbl", "", 1, 1)
	s2 := ctl.RejectSink("in.tbl", "", 1, 1)
	require.Same(t, s1, s2)
}

func TestSummaryReportsProcessedMinusRejected(t *testing.T) {
	ctl, _ := newTestController(t)
	ctl.totalReadRows = 100
	ctl.totalErrRows = 3
	processed, inserted := ctl.Summary()
	require.EqualValues(t, 100, processed)
	require.EqualValues(t, 97, inserted)
}

func TestCheckErrorBudgetTripsOnceExceeded(t *testing.T) {
	ctl, _ := newTestController(t)
	ctl.maxErrorRows = 5
	ctl.totalErrRows = 5
	require.NoError(t, ctl.checkErrorBudget(), "equal to the budget is still within it")
	ctl.totalErrRows = 6
	require.Error(t, ctl.checkErrorBudget())
}

func TestAcquireThenReleaseLockIsIdempotent(t *testing.T) {
	ctl, client := newTestController(t)
	require.NoError(t, ctl.AcquireLock(client, 1, time.Second, false))
	require.True(t, ctl.tableLocked)

	released, err := ctl.ReleaseLock(client, BulkLocal)
	require.NoError(t, err)
	require.True(t, released)

	released, err = ctl.ReleaseLock(client, BulkLocal)
	require.NoError(t, err)
	require.False(t, released, "releasing an already-released lock is a no-op")
}

func TestReleaseLockIsNoopInRemoteWorkerMode(t *testing.T) {
	ctl, client := newTestController(t)
	require.NoError(t, ctl.AcquireLock(client, 1, time.Second, false))

	released, err := ctl.ReleaseLock(client, BulkRemoteMultipleSrc)
	require.NoError(t, err)
	require.False(t, released)
	require.True(t, ctl.tableLocked, "lock ownership in worker mode belongs to the coordinator")
}

func TestInitializeBuffersSizesRingToColumnCount(t *testing.T) {
	ctl, _ := newTestController(t)
	ci := coltype.NewInfo(coltype.Static{ColName: "a", WeType: coltype.WrInt, Width: 4})
	ctl.AddColumn(ci, nil, nil, 0)
	ctl.InitializeBuffers(3, 1024, TextOptions{Delimiter: '|'}, ModeText)
	require.Equal(t, 3, ctl.ring.Size())
	require.Equal(t, 1, ctl.ring.At(0).NumColumns())
}
