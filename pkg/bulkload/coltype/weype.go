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

// Package coltype is the closed tagged sum of value kinds the
// bulk-ingest engine knows how to convert, plus the static and
// per-extent mutable metadata carried per column (spec §3 ColumnInfo).
package coltype

// WeType is the engine's internal element kind, distinct from the
// catalog's SQL-visible dataType: several dataTypes share one WeType
// (e.g. DECIMAL(p,s) with p<=2 and TINYINT both ride the WrByte path).
type WeType int

const (
	WrByte WeType = iota // 1-byte integer path (tinyint, bool)
	WrShort              // 2-byte integer path (smallint)
	WrInt                // 4-byte integer path (int, date)
	WrLongLong           // 8-byte integer path (bigint, datetime, timestamp, time)
	WrUByte
	WrUShort
	WrUInt
	WrULongLong
	WrFloat
	WrDouble
	WrChar    // fixed-width CHAR/VARCHAR, null-padded/truncated text
	WrBinary  // 16-byte wide decimal / fixed binary
	WrDict    // dictionary-encoded string column, 8-byte token on disk
	WrDate
	WrTime
	WrDatetime
	WrTimestamp
)

// Width returns the fixed on-disk width in bytes for WeTypes whose
// width does not depend on column metadata: WrDict returns its 8-byte
// token width and WrBinary 16. WrChar is metadata-driven and returns 0
// here; callers must use ColumnInfo.Width.
func (t WeType) Width() int {
	switch t {
	case WrByte, WrUByte:
		return 1
	case WrShort, WrUShort:
		return 2
	case WrInt, WrUInt, WrFloat, WrDate:
		return 4
	case WrLongLong, WrULongLong, WrDouble, WrDatetime, WrTimestamp, WrTime, WrDict:
		return 8
	case WrBinary:
		return 16
	default:
		return 0
	}
}

// Null sentinels, fixed per type (spec §4.4).
const (
	TinyIntNull   int8   = -128
	SmallIntNull  int16  = -32768
	IntNull       int32  = -1 << 31
	BigIntNull    int64  = -1 << 63
	UTinyIntNull  uint8  = 0xFE
	USmallIntNull uint16 = 0xFFFE
	UIntNull      uint32 = 0xFFFFFFFE
	UBigIntNull   uint64 = 0xFFFFFFFFFFFFFFFE
	FloatNull     float32 = -1.0 * 3.4028234e38 * (1.0 - 1.0/8388608.0)
	DoubleNull    float64 = -1.0 * 1.7976931348623157e308 * (1.0 - 1.0/4503599627370496.0)
	DateNull      uint32  = 0xFFFFFFFE
	TimeNull      int64   = -1
	DatetimeNull  int64   = -2 // bit pattern 0xFFFFFFFFFFFFFFFE
	TimestampNull int64   = 0
)

// CharNull is the fixed CHAR/VARCHAR null encoding: width-1 bytes of
// 0xFF followed by a single 0xFE.
func CharNull(width int) []byte {
	b := make([]byte, width)
	for i := 0; i < width-1; i++ {
		b[i] = 0xFF
	}
	if width > 0 {
		b[width-1] = 0xFE
	}
	return b
}

// DictNullToken is the fixed 8-byte token dictionary columns emit for
// a null input (spec §4.3).
const DictNullToken uint64 = 0xFFFFFFFFFFFFFFFE
