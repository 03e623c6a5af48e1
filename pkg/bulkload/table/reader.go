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
	"github.com/colstore/bulkimport/pkg/bulkload/errcode"
	"github.com/colstore/bulkimport/pkg/bulkload/source"
)

// FileOpener opens the next input file in the job's file list, or
// reports that the list is exhausted. Kept as an interface so this
// package has no direct dependency on stdin/HDFS/object-storage
// plumbing, matching spec §1's "out of scope: distributed HDFS file
// primitives."
type FileOpener interface {
	OpenNext() (source.BatchSource, bool, error)
}

// ReadTableData implements readTableData (spec §4.1 reader loop):
// opens files from opener until exhausted, filling the ring one buffer
// at a time and draining each fill's error rows into the reject sink.
func (c *Controller) ReadTableData(opener FileOpener, maxErrorRows uint64) error {
	c.mu.Lock()
	c.maxErrorRows = maxErrorRows
	ringSize := c.ring.Size()
	c.mu.Unlock()

	src, more, err := opener.OpenNext()
	if err != nil {
		return errcode.NewFileOpen("input", err)
	}
	if !more {
		c.finishReadingNoInput()
		return nil
	}

	readIdx := 0
	var cumulativeRows uint64

	for {
		if c.shouldStop() {
			c.SetParseError()
			return errcode.NewInvariant("job canceled before read completed")
		}

		buf, got := c.ring.WaitForFreeSlot(readIdx, c.shouldStop)
		if !got {
			return nil
		}

		c.mu.Lock()
		c.currentReadBuffer = readIdx
		errBudget := int64(c.maxErrorRows) - int64(c.totalErrRows)
		c.mu.Unlock()

		res, ferr := src.Fill(buf, errBudget)
		if ferr != nil {
			c.SetParseError()
			return errcode.NewReadIO(ferr)
		}

		c.mu.Lock()
		c.bufferStartRow[readIdx] = int64(cumulativeRows)
		cumulativeRows += uint64(res.RowsRead)
		c.totalReadRows = cumulativeRows
		errRows := buf.ErrorRows.GetCardinality()
		c.totalErrRows += errRows
		sink := c.rejectSink
		c.mu.Unlock()

		if sink != nil && errRows > 0 {
			it := buf.ErrorRows.Iterator()
			for it.HasNext() {
				idx := it.Next()
				row := buf.Rows[idx]
				sink.RejectRow(int64(row.RowNumber), row.Raw, "malformed record")
			}
		}

		if err := c.checkErrorBudget(); err != nil {
			c.SetParseError()
			return err
		}

		isLast := res.EOF
		if isLast {
			next, more, err := opener.OpenNext()
			if err != nil {
				c.SetParseError()
				return errcode.NewFileOpen("input", err)
			}
			if more {
				src.Close()
				src = next
				isLast = false
			}
		}

		c.ring.MarkReadComplete(readIdx, isLast)

		if isLast {
			src.Close()
			c.mu.Lock()
			c.lastBufferID = readIdx
			c.status = StatusReadComplete
			c.mu.Unlock()
			return nil
		}

		readIdx = (readIdx + 1) % ringSize
	}
}

// finishReadingNoInput handles the degenerate zero-file case: there is
// nothing to read, so the job is immediately read-complete with buffer
// 0 (still New) standing in as the vacuous "last buffer".
func (c *Controller) finishReadingNoInput() {
	c.mu.Lock()
	c.lastBufferID = 0
	c.status = StatusReadComplete
	c.mu.Unlock()
	c.ring.MarkReadComplete(0, true)
}
