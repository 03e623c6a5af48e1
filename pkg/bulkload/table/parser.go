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
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
)

// getColumnForParse implements spec §4.1 getColumnForParse: prefers a
// column that has never been parsed (widest first, to hide its I/O
// behind everything else), else whichever unlocked column took longest
// on its last parse (cost-based heuristic to hide slow columns).
func (c *Controller) getColumnForParse(workerID int) (bufIdx, col int, ok bool) {
	return c.ring.FindColumnToParse(workerID, func(bi, ci int) int64 {
		col := c.columns[ci]
		if atomic.LoadInt32(&col.everParsed) == 0 {
			return int64(col.Info.Width)<<32 | 1
		}
		return atomic.LoadInt64(&col.lastParseElapsed)
	})
}

// parseColumn implements spec §4.1 parseColumn: delegates to the
// column's wired parseFunc for the full row span held in bufIdx, timing
// the call. It runs with no table mutex held, matching spec §5's "Table
// mutex ... is held briefly; parsing and I/O occur without it."
func (c *Controller) parseColumn(bufIdx, colIdx int) (time.Duration, error) {
	start := time.Now()
	buf := c.ring.At(bufIdx)
	col := c.columns[colIdx]

	c.mu.Lock()
	startInputRow := c.bufferStartRow[bufIdx]
	c.mu.Unlock()

	err := col.parse(col, buf, 0, buf.RowCount, startInputRow, c.textOpts, c.rejectSink)
	return time.Since(start), err
}

// setParseComplete implements spec §4.1 setParseComplete: records the
// column's elapsed time, marks it done in the ring, and when that makes
// the buffer fully parsed, checks whether the job has reached its last
// buffer's last column — in which case it runs Finalize. After a parse
// error or Finalize it wakes every worker waiting on the ring so each
// one sees the job's final status and exits.
func (c *Controller) setParseComplete(bufIdx, colIdx int, elapsed time.Duration, parseErr error) error {
	col := c.columns[colIdx]
	atomic.StoreInt32(&col.everParsed, 1)
	atomic.StoreInt64(&col.lastParseElapsed, elapsed.Nanoseconds())

	if parseErr != nil {
		c.SetParseError()
		return parseErr
	}

	bufferDone := c.ring.CompleteColumn(bufIdx, colIdx)
	if !bufferDone {
		return nil
	}

	c.mu.Lock()
	c.hasProcessingBegun = true
	lastBufferID := c.lastBufferID
	c.mu.Unlock()

	if lastBufferID == bufIdx {
		err := c.Finalize()
		c.ring.Mu.Lock()
		c.ring.Cond.Broadcast()
		c.ring.Mu.Unlock()
		return err
	}
	return nil
}

// RunParsers starts n worker goroutines (via an ants pool, matching the
// teacher's worker-pool idiom) that loop calling getColumnForParse,
// parseColumn and setParseComplete until the job reaches ParseComplete,
// Err, or stop reports true. It blocks until every worker exits.
func (c *Controller) RunParsers(n int, stop func() bool) error {
	pool, err := ants.NewPool(n)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	wg.Add(n)
	var firstErr atomic.Value

	for i := 0; i < n; i++ {
		workerID := i + 1
		if err := pool.Submit(func() {
			defer wg.Done()
			c.parserLoop(workerID, stop, &firstErr)
		}); err != nil {
			wg.Done()
		}
	}
	wg.Wait()

	if v := firstErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (c *Controller) parserLoop(workerID int, stop func() bool, firstErr *atomic.Value) {
	for {
		if c.shouldStop() || stop() {
			return
		}
		if c.Status() == StatusErr {
			return
		}

		bufIdx, colIdx, ok := c.getColumnForParse(workerID)
		if !ok {
			c.ring.Mu.Lock()
			if c.allColumnsDoneLocked() {
				c.ring.Mu.Unlock()
				return
			}
			c.ring.Cond.Wait()
			c.ring.Mu.Unlock()
			continue
		}

		elapsed, err := c.parseColumn(bufIdx, colIdx)
		if cerr := c.setParseComplete(bufIdx, colIdx, elapsed, err); cerr != nil {
			firstErr.CompareAndSwap(nil, cerr)
			return
		}
	}
}

// allColumnsDoneLocked reports whether the job has reached its final
// buffer's final column, i.e. there is no more work any worker could
// ever claim. Caller must hold c.ring.Mu.
func (c *Controller) allColumnsDoneLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == StatusParseComplete || c.status == StatusErr
}
