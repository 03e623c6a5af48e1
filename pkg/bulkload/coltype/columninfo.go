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

package coltype

import "sync"

// DictionaryInfo is the static metadata for a COL_TYPE_DICT column's
// paired variable-length store file.
type DictionaryInfo struct {
	DctnryOID  uint32
	StoreFile  string
	Compressed bool
}

// Static is the immutable, per-job metadata of one column — everything
// known at addColumn time. It never changes after the column is added.
type Static struct {
	ColName          string
	MapOID           uint32
	WeType           WeType
	DataType         string
	Width            int // fixed on-disk width: 1/2/4/8/16
	DefinedWidth     int // logical char length for CHAR/VARCHAR
	CompressionType  int
	AutoIncFlag      bool
	FWithDefault     bool
	DefaultInt       int64
	DefaultDouble    float64
	DefaultString    string
	MinIntSat        int64
	MaxIntSat        int64
	MinUintSat       uint64
	MaxUintSat       uint64
	MinDblSat        float64
	MaxDblSat        float64
	MinDecSat        Decimal128
	MaxDecSat        Decimal128
	SourceScale      int
	TargetScale      int
	Dictionary       *DictionaryInfo // nil unless WeType == WrDict
}

// IsDict reports whether this column is dictionary-encoded.
func (s *Static) IsDict() bool { return s.Dictionary != nil }

// RowsPerExtent returns rowsPerExtent(width), a constant per column
// derived from its on-disk width, per spec §3. The reviewed source
// sizes extents so that every column's extent spans the same number of
// output bytes regardless of width.
func RowsPerExtent(width int) int64 {
	const bytesPerExtent = 8 * 1024 * 1024 // 8MiB, matching one dbfile stripe
	if width <= 0 {
		width = 8
	}
	return bytesPerExtent / int64(width)
}

// CPAccumulator is the running per-extent min/max ("casual partition")
// state. Exactly one of the narrow (int64/uint64/float64) or wide
// (Decimal128) pair is meaningful for a given column, chosen by
// Static.Width <= 8 (narrow path) vs Static.WeType == WrBinary (wide
// decimal path), per spec §4.4.
type CPAccumulator struct {
	MinI, MaxI   int64
	MinU, MaxU   uint64
	MinF, MaxF   float64
	MinD, MaxD   Decimal128
	Unsigned     bool
	IsFloat      bool
	IsWide       bool
	sawValue     bool
}

// Reset restores the accumulator to the type's identity element: widest
// negative max / widest positive min, chosen per signedness, so that
// the first real value always wins the first Extend call.
func (a *CPAccumulator) Reset() {
	a.sawValue = false
	switch {
	case a.IsWide:
		a.MinD, a.MaxD = Decimal128Max, Decimal128Min
	case a.IsFloat:
		a.MinF, a.MaxF = maxFloat64, minFloat64
	case a.Unsigned:
		a.MinU, a.MaxU = maxUint64, 0
	default:
		a.MinI, a.MaxI = maxInt64, minInt64
	}
}

const (
	maxInt64   = int64(1<<63 - 1)
	minInt64   = int64(-1 << 63)
	maxUint64  = uint64(1<<64 - 1)
	maxFloat64 = 1.7976931348623157e308
	minFloat64 = -1.7976931348623157e308
)

func (a *CPAccumulator) ExtendI(v int64) {
	a.sawValue = true
	if v < a.MinI {
		a.MinI = v
	}
	if v > a.MaxI {
		a.MaxI = v
	}
}

// ExtendU compares using unsigned semantics, per spec §4.4 step 5.
func (a *CPAccumulator) ExtendU(v uint64) {
	a.sawValue = true
	if v < a.MinU {
		a.MinU = v
	}
	if v > a.MaxU {
		a.MaxU = v
	}
}

func (a *CPAccumulator) ExtendF(v float64) {
	a.sawValue = true
	if v < a.MinF {
		a.MinF = v
	}
	if v > a.MaxF {
		a.MaxF = v
	}
}

func (a *CPAccumulator) ExtendD(v Decimal128) {
	a.sawValue = true
	if v.Cmp(a.MinD) < 0 {
		a.MinD = v
	}
	if v.Cmp(a.MaxD) > 0 {
		a.MaxD = v
	}
}

// HasValue reports whether Extend* was called since the last Reset; an
// extent with no non-null values publishes the empty identity (spec
// testable property 7).
func (a *CPAccumulator) HasValue() bool { return a.sawValue }

// Extent is the persisted per-extent CP record plus dbroot addressing,
// published to BRM at finalize.
type Extent struct {
	DBRoot, Partition, Segment int
	LocalHWM                   uint64
	Min, Max                   CPAccumulator
}

// Info is the full mutable per-column state the table controller and
// column buffer manager share: Static metadata plus the live CP
// accumulator, saturation counters and auto-increment cursor. The
// methods below serialize access to the mutable fields through Info's
// own embedded mutex.
type Info struct {
	Static

	mu                  sync.Mutex
	CP                  CPAccumulator
	CPHistory           []CPAccumulator // one entry per completed extent, in order
	LastInputRowInExtent int64
	boundaryPrimed       bool // false until the first MaybeRollCP call adopts a real boundary
	SaturatedCount       uint64
	AutoIncNextValue     int64
	DictFlushBlocks      []uint64
}

// FlushCP appends the live CP accumulator to CPHistory (one record per
// extent, spec §4.4 CP rollover step "flushes the accumulator to the
// ColumnInfo via updateCPInfo") and resets it to the type's identity.
// Called directly by the table controller at end-of-column, to flush
// the final, possibly-partial extent; mid-stream rollovers go through
// MaybeRollCP below.
func (ci *Info) FlushCP() {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.CPHistory = append(ci.CPHistory, ci.CP)
	ci.CP.Reset()
}

// ExtendI/ExtendU/ExtendF/ExtendD fold one value into the live CP
// accumulator under Info's lock: the accumulator is shared by every
// parser worker currently converting a Section of this column (workers
// for different RowBuffers may run concurrently on the same column
// ordinal, spec §4.1 getColumnForParse), so updates must be
// serialized even though reserve/release already orders the Sections
// themselves.
func (ci *Info) ExtendI(v int64) {
	ci.mu.Lock()
	ci.CP.ExtendI(v)
	ci.mu.Unlock()
}

func (ci *Info) ExtendU(v uint64) {
	ci.mu.Lock()
	ci.CP.ExtendU(v)
	ci.mu.Unlock()
}

func (ci *Info) ExtendF(v float64) {
	ci.mu.Lock()
	ci.CP.ExtendF(v)
	ci.mu.Unlock()
}

func (ci *Info) ExtendD(v Decimal128) {
	ci.mu.Lock()
	ci.CP.ExtendD(v)
	ci.mu.Unlock()
}

// MaybeRollCP flushes and resets the CP accumulator if row has reached
// or passed the current extent boundary, then adopts lastRowInExtent as
// the new boundary. lastRowInExtent is the authoritative value
// ColumnBufferManager.Reserve returned for the Section row belongs to
// (spec §4.2) — not a fixed per-width increment, since a column whose
// Manager resumed from a nonzero HWM starts its first extent already
// partway full. The very first call has nothing completed to flush yet,
// so it only primes LastInputRowInExtent. Safe to call once per
// element; it is a no-op except exactly at the boundary.
func (ci *Info) MaybeRollCP(row int64, lastRowInExtent int64) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if !ci.boundaryPrimed {
		ci.LastInputRowInExtent = lastRowInExtent
		ci.boundaryPrimed = true
		return
	}
	if row < ci.LastInputRowInExtent {
		return
	}
	ci.CPHistory = append(ci.CPHistory, ci.CP)
	ci.CP.Reset()
	ci.LastInputRowInExtent = lastRowInExtent
}

// NewInfo builds an Info with its CP accumulator initialized to the
// type's identity. LastInputRowInExtent is left unprimed: the first
// MaybeRollCP call adopts the real boundary from whichever
// ColumnBufferManager.Reserve call covers this column's first Section,
// since that boundary depends on the extent this column resumed from
// (spec §4.2), not just its width.
func NewInfo(s Static) *Info {
	ci := &Info{Static: s}
	ci.CP.Unsigned = isUnsigned(s.WeType)
	ci.CP.IsFloat = isFloat(s.WeType)
	ci.CP.IsWide = s.WeType == WrBinary
	ci.CP.Reset()
	ci.AutoIncNextValue = 1
	return ci
}

// SnapshotCPHistory returns a copy of the completed-extent CP records,
// for finishBRM's publish call at finalize (spec §4.5 step 6).
func (ci *Info) SnapshotCPHistory() []CPAccumulator {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	return append([]CPAccumulator(nil), ci.CPHistory...)
}

// CurrentAutoIncNext returns the next unreserved auto-increment value,
// for synchronizeAutoInc at finalize (spec §4.5 step 3).
func (ci *Info) CurrentAutoIncNext() int64 {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	return ci.AutoIncNextValue
}

func isUnsigned(t WeType) bool {
	switch t {
	case WrUByte, WrUShort, WrUInt, WrULongLong, WrChar:
		// CHAR CP uses unsigned byte-lexicographic comparison (spec
		// §4.4 step 5's "for unsigned types, comparison uses unsigned
		// semantics" applied to raw bytes, see convert.Char).
		return true
	default:
		return false
	}
}

func isFloat(t WeType) bool {
	return t == WrFloat || t == WrDouble
}

// IncrSaturated bumps the saturation counter; spec invariant: monotonic
// non-decreasing.
func (ci *Info) IncrSaturated(n uint64) {
	ci.mu.Lock()
	ci.SaturatedCount += n
	ci.mu.Unlock()
}

// ReserveAutoIncNums atomically reserves n consecutive auto-increment
// values and returns the first one, resolving the Open Question in
// spec §9: reservation happens once per batch/Section, not once per
// element.
func (ci *Info) ReserveAutoIncNums(n int64) int64 {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	first := ci.AutoIncNextValue
	ci.AutoIncNextValue += n
	return first
}
