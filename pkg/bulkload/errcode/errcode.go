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

// Package errcode defines the closed set of error codes the bulk-ingest
// core returns, and constructors that wrap them with a stack trace.
package errcode

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Code identifies one member of the error taxonomy in spec §7.
type Code uint16

const (
	Ok Code = 0

	// Group 1: row-level, recoverable up to a budget.
	ErrRowParse       Code = 1100
	ErrRowTruncated   Code = 1101
	ErrRowTypeMismatch Code = 1102

	// Group 2: table-fatal.
	ErrFileOpen              Code = 1200
	ErrReadIO                Code = 1201
	ErrFileWrite             Code = 1213
	ErrExtentAlloc           Code = 1202
	ErrBRMHWMsNotEqual       Code = 1203
	ErrBRMHWMsOutOfSync      Code = 1204
	ErrBRMUnsuppWidth        Code = 1205
	ErrBRMPublish            Code = 1206
	ErrAutoIncSync           Code = 1207
	ErrTblLockGetLockLocked  Code = 1208
	ErrTblLockChangeState    Code = 1209
	ErrTblLockRelease        Code = 1210
	ErrRollbackMetaWrite     Code = 1211
	ErrBulkMaxErrNum         Code = 1212

	// Group 3: job-fatal.
	ErrBulkRollbackMissRoot Code = 1300

	// Group 4: internal / config.
	ErrBadConfig     Code = 1400
	ErrConfigMissing Code = 1401
	ErrInternal      Code = 1402
)

var names = map[Code]string{
	ErrRowParse:              "ERR_ROW_PARSE",
	ErrRowTruncated:          "ERR_ROW_TRUNCATED",
	ErrRowTypeMismatch:       "ERR_ROW_TYPE_MISMATCH",
	ErrFileOpen:              "ERR_FILE_OPEN",
	ErrReadIO:                "ERR_READ_IO",
	ErrFileWrite:             "ERR_FILE_WRITE",
	ErrExtentAlloc:           "ERR_EXTENT_ALLOC",
	ErrBRMHWMsNotEqual:       "ERR_BRM_HWMS_NOT_EQUAL",
	ErrBRMHWMsOutOfSync:      "ERR_BRM_HWMS_OUT_OF_SYNC",
	ErrBRMUnsuppWidth:        "ERR_BRM_UNSUPP_WIDTH",
	ErrBRMPublish:            "ERR_BRM_PUBLISH",
	ErrAutoIncSync:           "ERR_AUTO_INC_SYNC",
	ErrTblLockGetLockLocked:  "ERR_TBLLOCK_GET_LOCK_LOCKED",
	ErrTblLockChangeState:    "ERR_TBLLOCK_CHANGE_STATE",
	ErrTblLockRelease:        "ERR_TBLLOCK_RELEASE",
	ErrRollbackMetaWrite:     "ERR_ROLLBACK_META_WRITE",
	ErrBulkMaxErrNum:         "ERR_BULK_MAX_ERR_NUM",
	ErrBulkRollbackMissRoot:  "ERR_BULK_ROLLBACK_MISS_ROOT",
	ErrBadConfig:             "ERR_BAD_CONFIG",
	ErrConfigMissing:         "ERR_CONFIG_MISSING",
	ErrInternal:              "ERR_INTERNAL",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("ERR_UNKNOWN(%d)", uint16(c))
}

// Error is a moerr-style error: a stable numeric code plus a
// cockroachdb/errors-wrapped cause carrying the stack trace.
type Error struct {
	code Code
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.err.Error())
}

func (e *Error) Unwrap() error { return e.err }

// CodeOf returns the numeric code carried by err, or Ok if err is nil and
// ErrInternal if err is not one produced by this package.
func CodeOf(err error) Code {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ErrInternal
}

func new(code Code, msg string, args ...any) *Error {
	return &Error{code: code, err: errors.WithStack(fmt.Errorf(msg, args...))}
}

func NewRowParse(reason string) *Error { return new(ErrRowParse, "row parse failed: %s", reason) }

func NewRowTruncated(col string) *Error {
	return new(ErrRowTruncated, "value truncated for column %s", col)
}

func NewRowTypeMismatch(col, got string) *Error {
	return new(ErrRowTypeMismatch, "type mismatch for column %s: %s", col, got)
}

func NewFileOpen(path string, cause error) *Error {
	return &Error{code: ErrFileOpen, err: errors.Wrapf(cause, "open %s", path)}
}

func NewReadIO(cause error) *Error {
	return &Error{code: ErrReadIO, err: errors.Wrap(cause, "read input")}
}

func NewFileWrite(path string, cause error) *Error {
	return &Error{code: ErrFileWrite, err: errors.Wrapf(cause, "write %s", path)}
}

func NewExtentAlloc(column string, cause error) *Error {
	return &Error{code: ErrExtentAlloc, err: errors.Wrapf(cause, "allocate extent for column %s", column)}
}

func NewBRMHWMsNotEqual(width int, colA, colB string) *Error {
	return new(ErrBRMHWMsNotEqual, "columns %s and %s (width %d) disagree on HWM location", colA, colB, width)
}

func NewBRMHWMsOutOfSync(narrow, wide string, hwmNarrow, hwmWide uint64) *Error {
	return new(ErrBRMHWMsOutOfSync, "hwm of %s (%d) out of sync with %s (%d)", wide, hwmWide, narrow, hwmNarrow)
}

func NewBRMUnsuppWidth(width int) *Error {
	return new(ErrBRMUnsuppWidth, "unsupported column width %d", width)
}

func NewBRMPublish(cause error) *Error {
	return &Error{code: ErrBRMPublish, err: errors.Wrap(cause, "publish to BRM")}
}

func NewAutoIncSync(cause error) *Error {
	return &Error{code: ErrAutoIncSync, err: errors.Wrap(cause, "synchronize auto-increment")}
}

func NewTblLockGetLockLocked(tableOID uint32, holder string) *Error {
	return new(ErrTblLockGetLockLocked, "table %d already locked by %s", tableOID, holder)
}

func NewTblLockChangeState(cause error) *Error {
	return &Error{code: ErrTblLockChangeState, err: errors.Wrap(cause, "change table lock state")}
}

func NewTblLockRelease(cause error) *Error {
	return &Error{code: ErrTblLockRelease, err: errors.Wrap(cause, "release table lock")}
}

func NewRollbackMetaWrite(cause error) *Error {
	return &Error{code: ErrRollbackMetaWrite, err: errors.Wrap(cause, "write bulk rollback metadata")}
}

func NewBulkMaxErrNum(total, max uint64) *Error {
	return new(ErrBulkMaxErrNum, "total error rows %d exceeds maxErrorRows %d", total, max)
}

func NewBulkRollbackMissRoot(dbRoot int) *Error {
	return new(ErrBulkRollbackMissRoot, "dbroot %d no longer local, run cleartablelock", dbRoot)
}

func NewBadConfig(msg string) *Error { return new(ErrBadConfig, "%s", msg) }

func NewConfigMissing(section, key string) *Error {
	return new(ErrConfigMissing, "missing config key [%s]%s", section, key)
}

func NewInternal(cause error) *Error {
	return &Error{code: ErrInternal, err: errors.Wrap(cause, "internal error")}
}

// NewInvariant reports violation of an invariant the caller is
// responsible for upholding (e.g. out-of-order Reserve, double
// Release) — a programming bug, not a runtime condition.
func NewInvariant(msg string, args ...any) *Error {
	return new(ErrInternal, msg, args...)
}
