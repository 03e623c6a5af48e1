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
	"go.uber.org/zap"

	"github.com/colstore/bulkimport/pkg/bulkload/brm"
	"github.com/colstore/bulkimport/pkg/bulkload/hwm"
	"github.com/colstore/bulkimport/pkg/bulkload/rollback"
)

// Finalize implements the finalize sequence of spec §4.5, run exactly
// once when the last column of the last buffer completes. The first
// failing step sets status=ERR and returns without running later
// steps, matching "first failure sets status=ERR and returns." The one
// exception is deleting the rollback metadata in step 7: that failure
// is logged and finalize continues.
func (c *Controller) Finalize() error {
	c.mu.Lock()
	cols := append([]*Column(nil), c.columns...)
	c.mu.Unlock()

	// Step 1+2: collect dictionary flush blocks and close column/dict files.
	var flushBlocks []uint64
	for _, col := range cols {
		if col.Dict != nil {
			flushBlocks = append(flushBlocks, col.Dict.FlushBlocks()...)
			if err := col.Dict.Close(); err != nil {
				return c.fail(err)
			}
		}
		col.Info.FlushCP()
		if err := col.Mgr.Close(); err != nil {
			return c.fail(err)
		}
	}
	c.mu.Lock()
	c.dictFlushBlocks = append(c.dictFlushBlocks, flushBlocks...)
	c.mu.Unlock()
	// Non-HDFS cache invalidation (step 2) is a no-op here: this core
	// has no upstream PrimProc cache to invalidate against (spec §1
	// "out of scope: the primitive-processor block cache").

	// Step 3: synchronizeAutoInc for the one auto-inc column, if any.
	for _, col := range cols {
		if col.Info.AutoIncFlag {
			if err := c.brmClient.SyncAutoInc(col.Info.MapOID, col.Info.CurrentAutoIncNext()); err != nil {
				return c.fail(err)
			}
		}
	}

	// Step 4: validateColumnHWMs("Ending").
	if err := c.validateHWMs(cols); err != nil {
		return c.fail(err)
	}

	// Step 5: confirmDBFileChanges — HDFS two-phase commit. No-op on the
	// local filesystem backend this core targets (spec §1 out-of-scope
	// "distributed HDFS file primitives").

	// Step 6: finishBRM — push per-column HWM and CP updates to BRM.
	for _, col := range cols {
		extent := col.Mgr.CurrentExtent()
		loc := brm.Location{DBRoot: extent.DBRoot, Partition: extent.Partition, Segment: extent.Segment, LocalHWM: extent.HWM}
		if err := c.brmClient.PublishHWM(col.Info.MapOID, loc, col.Info.SnapshotCPHistory()); err != nil {
			return c.fail(err)
		}
	}

	// Step 7: changeTableLockState(CLEANUP), delete temp changes (no-op,
	// see step 5), delete rollback metadata, release the table lock.
	if err := c.rollback.Delete(); err != nil {
		c.log.Error("delete rollback metadata failed", zap.Error(err))
	}
	if _, err := c.ReleaseLock(c.brmClient, c.bulkMode); err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.status = StatusParseComplete
	c.mu.Unlock()
	return nil
}

func (c *Controller) fail(err error) error {
	c.SetParseError()
	c.log.Error("finalize failed", zap.Error(err))
	return err
}

// validateHWMs builds the hwm.ColumnHWM view of every column's current
// extent and runs hwm.Validate, implementing validateColumnHWMs (spec
// §4.6).
func (c *Controller) validateHWMs(cols []*Column) error {
	views := make([]hwm.ColumnHWM, len(cols))
	for i, col := range cols {
		extent := col.Mgr.CurrentExtent()
		views[i] = hwm.ColumnHWM{
			ColName:   col.Info.ColName,
			Width:     col.Info.Width,
			DBRoot:    extent.DBRoot,
			Partition: extent.Partition,
			Segment:   extent.Segment,
			LocalHWM:  extent.HWM,
		}
	}
	return hwm.Validate(views)
}

// RollbackWork implements rollbackWork (spec §4.7), called by the job
// on abnormal exit for a table past hasProcessingBegun.
func (c *Controller) RollbackWork(restorer rollback.SegmentRestorer) error {
	c.mu.Lock()
	begun := c.hasProcessingBegun
	c.mu.Unlock()

	for _, col := range c.columns {
		col.Mgr.Close()
		if col.Dict != nil {
			col.Dict.Close()
		}
	}

	meta, err := c.rollback.Load()
	if err != nil {
		return err
	}

	if begun {
		mgr := &rollback.Manager{
			CurrentDbRootIds: c.brmClient.DbRootIds,
			Restorer:         restorer,
		}
		if err := mgr.Rollback(meta); err != nil {
			return err
		}
	}

	if err := c.rollback.Delete(); err != nil {
		c.log.Error("delete rollback metadata after rollback failed", zap.Error(err))
	}
	if _, err := c.ReleaseLock(c.brmClient, c.bulkMode); err != nil {
		c.log.Error("release table lock after rollback failed", zap.Error(err))
	}
	return nil
}

// SaveRollbackSnapshot implements saveBulkRollbackMetaData (spec §4.7):
// called once, before any write to user data, with every column's
// starting location.
func (c *Controller) SaveRollbackSnapshot() error {
	if err := c.rollback.Init(); err != nil {
		return err
	}

	segs := make([]rollback.SegmentSnapshot, len(c.columns))
	for i, col := range c.columns {
		extent := col.Mgr.CurrentExtent()
		segs[i] = rollback.SegmentSnapshot{
			ColName:   col.Info.ColName,
			DBRoot:    extent.DBRoot,
			Partition: extent.Partition,
			Segment:   extent.Segment,
			LocalHWM:  extent.HWM,
		}
		if col.Info.IsDict() {
			segs[i].DctnryOID = col.Info.Dictionary.DctnryOID
		}
	}

	return c.rollback.Save(rollback.Metadata{
		TableOID:      c.tableOID,
		ProcessOwner:  c.processName,
		Segments:      segs,
		OrigDbRootIds: c.origDbRootIds,
	})
}
