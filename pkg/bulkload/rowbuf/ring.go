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

package rowbuf

import "sync"

// Ring is a fixed-size, reused-in-place set of Buffers. Transitions are
// only ever made under Mu; Cond is signalled on every transition so
// waiters (the reader waiting for a free slot, workers waiting for a
// READ_COMPLETE buffer) never poll — this is the condition-variable
// model spec §9 DESIGN NOTES calls for in place of the reviewed
// source's sleepMS(1) placeholder.
type Ring struct {
	Mu   sync.Mutex
	Cond *sync.Cond

	buffers []*Buffer
}

// New allocates a ring of n buffers, each sized to hold rowsPerBuf rows
// across numCols columns (spec TableController.initializeBuffers).
func New(n, numCols, rowsPerBuf int) *Ring {
	if n < 2 {
		n = 2
	}
	r := &Ring{buffers: make([]*Buffer, n)}
	r.Cond = sync.NewCond(&r.Mu)
	for i := range r.buffers {
		r.buffers[i] = newBuffer(numCols, rowsPerBuf)
	}
	return r
}

// Size returns the ring's fixed buffer count.
func (r *Ring) Size() int { return len(r.buffers) }

// At returns buffer i without locking; callers must already hold Mu or
// otherwise know the buffer cannot be concurrently reclaimed (e.g. a
// parser holding a column lock on it).
func (r *Ring) At(i int) *Buffer { return r.buffers[i] }

// WaitForFreeSlot blocks, under Mu, until buffers[idx] is New or
// ParseComplete, then claims it for reading: status becomes
// ReadInProgress and every column cell resets. stop is polled between
// wakeups so a cancelled job does not hang forever waiting on parsers
// that will never finish.
func (r *Ring) WaitForFreeSlot(idx int, stop func() bool) (*Buffer, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	for {
		b := r.buffers[idx]
		if b.Status == StatusNew || b.Status == ParseComplete {
			b.reclaim()
			b.Status = ReadInProgress
			r.Cond.Broadcast()
			return b, true
		}
		if stop() {
			return nil, false
		}
		r.Cond.Wait()
	}
}

// MarkReadComplete transitions buffers[idx] from ReadInProgress to
// ReadComplete and wakes any parser waiting for work.
func (r *Ring) MarkReadComplete(idx int, lastRow bool) {
	r.Mu.Lock()
	b := r.buffers[idx]
	b.Status = ReadComplete
	b.LastRowInBuf = lastRow
	r.Mu.Unlock()
	r.Cond.Broadcast()
}

// FindColumnToParse scans every ring slot for an unlocked column in a
// ReadComplete buffer. score lets the caller apply the cost-based
// heuristic from spec §4.1 getColumnForParse: the candidate cell with
// the highest score wins (e.g. widest never-parsed column, else slowest
// last parse time).
// Returns (bufferIdx, col, true) and locks that cell for workerID, or
// (_, _, false) if nothing is currently available.
func (r *Ring) FindColumnToParse(workerID int, score func(bufIdx, col int) int64) (int, int, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	bestBuf, bestCol, bestScore := -1, -1, int64(-1<<63)
	for bi, b := range r.buffers {
		if b.Status != ReadComplete {
			continue
		}
		for ci := range b.columnStatus {
			if b.columnStatus[ci] != ColNew || b.columnLocker[ci] != noLocker {
				continue
			}
			s := score(bi, ci)
			if s > bestScore {
				bestBuf, bestCol, bestScore = bi, ci, s
			}
		}
	}
	if bestBuf < 0 {
		return 0, 0, false
	}
	r.buffers[bestBuf].columnLocker[bestCol] = workerID
	r.buffers[bestBuf].columnStatus[bestCol] = ColParseInProgress
	return bestBuf, bestCol, true
}

// CompleteColumn marks (bufIdx, col) ParseComplete. If that makes every
// column in the buffer complete, the buffer transitions to
// ParseComplete and callers are notified via the returned bool so the
// table controller can check whether to finalize.
func (r *Ring) CompleteColumn(bufIdx, col int) (bufferDone bool) {
	r.Mu.Lock()
	b := r.buffers[bufIdx]
	done := b.SetColumnComplete(col)
	if done {
		b.Status = ParseComplete
	}
	r.Mu.Unlock()
	r.Cond.Broadcast()
	return done
}
