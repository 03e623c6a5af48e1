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

// Package table implements TableController (spec §4.1): owns the
// RowBuffer ring and every column's ColumnInfo/ColumnBufferManager,
// drives the reader and parser workers through the ring, and runs the
// finalize/rollback lifecycle.
package table

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/colstore/bulkimport/pkg/bulkload/brm"
	"github.com/colstore/bulkimport/pkg/bulkload/coltype"
	"github.com/colstore/bulkimport/pkg/bulkload/colbuf"
	"github.com/colstore/bulkimport/pkg/bulkload/dict"
	"github.com/colstore/bulkimport/pkg/bulkload/errcode"
	"github.com/colstore/bulkimport/pkg/bulkload/reject"
	"github.com/colstore/bulkimport/pkg/bulkload/rollback"
	"github.com/colstore/bulkimport/pkg/bulkload/rowbuf"
	"github.com/colstore/bulkimport/pkg/bulkload/tablelock"
	"github.com/colstore/bulkimport/pkg/bulkload/telemetry"
)

// Status is the table import job's lifecycle state (spec §3). It
// advances monotonically; Err is sticky.
type Status int

const (
	StatusNew Status = iota
	StatusReadInProgress
	StatusReadComplete
	StatusParseComplete
	StatusErr
)

// ImportMode selects the reader path (spec §3 importDataMode).
type ImportMode int

const (
	ModeText ImportMode = iota
	ModeBinaryFixed
	ModeParquet
)

// BulkMode selects the distributed processing topology (spec §3
// bulkMode); this core treats all three the same except for the
// tablelock.DistMode it is paired with at Acquire/Release time.
type BulkMode int

const (
	BulkLocal BulkMode = iota
	BulkRemoteSingleSrc
	BulkRemoteMultipleSrc
)

// jobExitFailure mirrors the reviewed source's shared BulkStatus::JobStatus
// sentinel: any thread that observes it must stop and propagate ERR.
const jobExitFailure int32 = 1

// Column bundles one column's static/mutable metadata with its
// ColumnBufferManager, optional DictionaryWriter, and the parse routine
// addColumn wires up for its WeType.
type Column struct {
	Info *coltype.Info
	Mgr  *colbuf.Manager
	Dict *dict.Writer // nil unless Info.IsDict()

	// FieldIndex is this column's 0-based position within a delimited
	// text row; meaningless for ModeParquet, where columns are located
	// by Arrow schema index instead.
	FieldIndex int

	parse parseFunc

	lastParseElapsed int64 // nanoseconds; atomic
	everParsed       int32 // atomic bool
}

// parseFunc converts one Section's worth of rows starting at
// startInputRow, reading raw fields from buf's rows [rowOffset,
// rowOffset+n), and writes the encoded bytes via mgr.Reserve/Release.
// Supplied per column by newColumnParser, dispatching on WeType.
type parseFunc func(col *Column, buf *rowbuf.Buffer, rowOffset, n int, startInputRow int64, opts TextOptions, sink *reject.Sink) error

// TextOptions carries the per-table text-parsing configuration a
// parseFunc needs to tokenize one row's fields (spec §3 RowBuffer
// fields: enclosedByChar, escapeChar, nullStringMode).
type TextOptions struct {
	Delimiter  byte
	Enclosure  byte
	Escape     byte
	NullString string
}

// Controller is one table's import job state machine.
type Controller struct {
	mu sync.Mutex

	tableOID    uint32
	tableName   string
	processName string
	txnID       int64

	status   Status
	locker   int // reader thread id; 0 means unset (valid ids start at 1)
	jobStatus int32 // atomic; jobExitFailure once cancellation observed

	columns []*Column

	ring               *rowbuf.Ring
	currentReadBuffer  int
	currentParseBuffer int
	lastBufferID       int // -1 until end of input
	numColsParsed      int // columns completed in currentParseBuffer

	// bufferStartRow[i] is the absolute input-row index of buffers[i]'s
	// first row, as of its most recent read fill; ring slots are reused
	// in place, so this must be refreshed every time the reader reclaims
	// a slot (spec §4.1 step 3 "reset its per-column lockers" — the
	// equivalent row-base reset for reserve()'s startInputRow argument).
	bufferStartRow []int64

	totalReadRows uint64
	totalErrRows  uint64
	maxErrorRows  uint64

	textOpts   TextOptions
	importMode ImportMode
	bulkMode   BulkMode

	rejectSink *reject.Sink

	tableLockID int64
	tableLocked bool

	origDbRootIds  []int
	dictFlushBlocks []uint64

	brmClient brm.Client
	rollback  *rollback.MetaWriter
	telemetry *telemetry.Emitter
	log       *zap.Logger

	hasProcessingBegun bool
}

// New builds a Controller for one table import job. log, brmClient and
// tele are external collaborators (spec §1 "out of scope: the
// networked Block Resolution Manager ... and the telemetry client");
// this package only depends on their interfaces.
func New(tableOID uint32, tableName, processName string, txnID int64, brmClient brm.Client, rollbackPath string, tele *telemetry.Emitter, log *zap.Logger) *Controller {
	return &Controller{
		tableOID:    tableOID,
		tableName:   tableName,
		processName: processName,
		txnID:       txnID,
		status:      StatusNew,
		lastBufferID: -1,
		brmClient:   brmClient,
		rollback:    rollback.New(rollbackPath),
		telemetry:   tele,
		log:         log,
		origDbRootIds: append([]int(nil), brmClient.DbRootIds()...),
	}
}

// AddColumn implements addColumn: appends a column, wiring its
// ColumnBufferManager and parse routine. fieldIndex is its position
// within a delimited text row (ignored for Parquet ingestion).
func (c *Controller) AddColumn(ci *coltype.Info, mgr *colbuf.Manager, dw *dict.Writer, fieldIndex int) *Column {
	col := &Column{Info: ci, Mgr: mgr, Dict: dw, FieldIndex: fieldIndex, parse: newColumnParser(ci.WeType)}
	c.mu.Lock()
	c.columns = append(c.columns, col)
	c.mu.Unlock()
	return col
}

// InitializeBuffers implements initializeBuffers: preallocates n
// RowBuffers sized to rowsPerBuf rows across the columns added so far.
func (c *Controller) InitializeBuffers(n, rowsPerBuf int, opts TextOptions, mode ImportMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.textOpts = opts
	c.importMode = mode
	c.ring = rowbuf.New(n, len(c.columns), rowsPerBuf)
	c.bufferStartRow = make([]int64, c.ring.Size())
}

// LockForRead implements lockForRead: succeeds exactly once, only if
// status==NEW and locker is unset (spec testable property 3, "Single
// reader").
func (c *Controller) LockForRead(workerID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusNew || c.locker != 0 {
		return false
	}
	c.locker = workerID
	c.status = StatusReadInProgress
	return true
}

// RequestShutdown sets the shared job-status sentinel every reader and
// parser poll, implementing the cooperative cancellation of spec §5,
// and wakes any of them waiting on the ring so they see it.
func (c *Controller) RequestShutdown() {
	atomic.StoreInt32(&c.jobStatus, jobExitFailure)
	if c.ring != nil {
		c.ring.Mu.Lock()
		c.ring.Cond.Broadcast()
		c.ring.Mu.Unlock()
	}
}

func (c *Controller) shouldStop() bool {
	return atomic.LoadInt32(&c.jobStatus) == jobExitFailure
}

// SetParseError implements setParseError: sets status=ERR, sticky.
func (c *Controller) SetParseError() {
	c.mu.Lock()
	c.status = StatusErr
	c.mu.Unlock()
	c.RequestShutdown()
}

// ColumnCount returns the number of columns added so far, for callers
// computing a new column's FieldIndex as they add it.
func (c *Controller) ColumnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.columns)
}

// Status reports the current job status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RejectSink returns the job's lazily-created reject sink, building one
// over inputPath on first call.
func (c *Controller) RejectSink(inputPath, errDir string, jobID int64, pid int) *reject.Sink {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejectSink == nil {
		c.rejectSink = reject.New(inputPath, errDir, jobID, pid)
	}
	return c.rejectSink
}

// Summary returns the user-visible per-table summary line's inputs
// (spec §7 "User-visible behavior"): rows read and rows actually
// persisted (read minus rejected).
func (c *Controller) Summary() (rowsProcessed, rowsInserted uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalReadRows, c.totalReadRows - c.totalErrRows
}

// checkErrorBudget implements spec §4.1 step 5: once totalErrRows
// exceeds maxErrorRows, the job is table-fatal.
func (c *Controller) checkErrorBudget() error {
	c.mu.Lock()
	total, max := c.totalErrRows, c.maxErrorRows
	c.mu.Unlock()
	if total > max {
		return errcode.NewBulkMaxErrNum(total, max)
	}
	return nil
}

// AcquireLock wraps tablelock.Acquire, remembering the granted lockID
// for the idempotent Release below.
func (c *Controller) AcquireLock(brmLock tablelock.BRM, sessionID int64, waitPeriod time.Duration, disableTimeOut bool) error {
	id, err := tablelock.Acquire(context.Background(), brmLock, c.tableOID, c.processName, os.Getpid(), sessionID, c.txnID, waitPeriod, disableTimeOut)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.tableLockID = id
	c.tableLocked = true
	c.mu.Unlock()
	return nil
}

// ReleaseLock wraps tablelock.Release, zeroing tableLockID on success so
// a second call is idempotently a no-op (spec testable property 10).
func (c *Controller) ReleaseLock(brmLock tablelock.BRM, mode BulkMode) (released bool, err error) {
	c.mu.Lock()
	id := c.tableLockID
	c.mu.Unlock()

	distMode := tablelock.DistModeNone
	if mode == BulkRemoteSingleSrc {
		distMode = tablelock.DistModeReport
	} else if mode == BulkRemoteMultipleSrc {
		distMode = tablelock.DistModeWorker
	}

	released, err = tablelock.Release(brmLock, distMode, id)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	if released {
		c.tableLockID = 0
		c.tableLocked = false
	}
	c.mu.Unlock()
	return released, nil
}
