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
	"strconv"
	"strings"

	"github.com/colstore/bulkimport/pkg/bulkload/convert"
	"github.com/colstore/bulkimport/pkg/bulkload/coltype"
	"github.com/colstore/bulkimport/pkg/bulkload/errcode"
	"github.com/colstore/bulkimport/pkg/bulkload/reject"
	"github.com/colstore/bulkimport/pkg/bulkload/rowbuf"
)

// splitFields tokenizes one delimited text row under enclosure/escape
// rules (spec §6 "Text: delimiter byte, optional single-byte enclosure
// character, single-byte escape"). A trailing newline is trimmed first.
func splitFields(raw []byte, opts TextOptions) [][]byte {
	line := raw
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}

	var fields [][]byte
	var cur []byte
	inEnclosure := false
	escaped := false

	flush := func() {
		fields = append(fields, cur)
		cur = nil
	}

	for i := 0; i < len(line); i++ {
		b := line[i]
		if escaped {
			cur = append(cur, b)
			escaped = false
			continue
		}
		switch {
		case opts.Escape != 0 && b == opts.Escape:
			escaped = true
		case opts.Enclosure != 0 && b == opts.Enclosure:
			inEnclosure = !inEnclosure
		case b == opts.Delimiter && !inEnclosure:
			flush()
		default:
			cur = append(cur, b)
		}
	}
	flush()
	return fields
}

// isNullField reports whether field, once unescaped, matches the
// configured null-string mode (spec §3 nullStringMode); the default
// mode treats the literal backslash-N as null.
func isNullField(field []byte, nullString string) bool {
	if nullString == "" {
		nullString = `\N`
	}
	return string(field) == nullString
}

// rowDecoder adapts one (buf, rowOffset, n, col) span into the i'th
// field's raw text bytes, applying null detection. Every convert.*
// Decoder closure below is built from this.
type rowDecoder struct {
	buf        *rowbuf.Buffer
	rowOffset  int
	col        *Column
	opts       TextOptions
	sink       *reject.Sink
}

func (d *rowDecoder) field(i int) (raw []byte, isNull bool) {
	row := d.buf.Rows[d.rowOffset+i]
	fields := splitFields(row.Raw, d.opts)
	if d.col.FieldIndex >= len(fields) {
		return nil, true
	}
	f := fields[d.col.FieldIndex]
	if isNullField(f, d.opts.NullString) {
		return nil, true
	}
	return f, false
}

func (d *rowDecoder) reject(i int, reason string) {
	if d.sink == nil {
		return
	}
	row := d.buf.Rows[d.rowOffset+i]
	d.sink.RejectRow(int64(row.RowNumber), row.Raw, reason)
}

func newColumnParser(t coltype.WeType) parseFunc {
	switch t {
	case coltype.WrByte:
		return parseIntLike(func(ci *coltype.Info, dec convert.Decoder[int8], out []byte, start, lastRowInExtent int64) convert.Stats {
			return convert.TinyInt(ci, dec, out, start, lastRowInExtent)
		}, 1, parseInt8)
	case coltype.WrShort:
		return parseIntLike(func(ci *coltype.Info, dec convert.Decoder[int16], out []byte, start, lastRowInExtent int64) convert.Stats {
			return convert.SmallInt(ci, dec, out, start, lastRowInExtent)
		}, 2, parseInt16)
	case coltype.WrInt:
		return parseIntLike(func(ci *coltype.Info, dec convert.Decoder[int32], out []byte, start, lastRowInExtent int64) convert.Stats {
			return convert.Int(ci, dec, out, start, lastRowInExtent)
		}, 4, parseInt32)
	case coltype.WrLongLong:
		return parseIntLike(func(ci *coltype.Info, dec convert.Decoder[int64], out []byte, start, lastRowInExtent int64) convert.Stats {
			return convert.BigInt(ci, dec, out, start, lastRowInExtent)
		}, 8, parseInt64)
	case coltype.WrUByte:
		return parseUintLike(func(ci *coltype.Info, dec convert.Decoder[uint8], out []byte, start, lastRowInExtent int64) convert.Stats {
			return convert.UTinyInt(ci, dec, out, start, lastRowInExtent)
		}, 1, parseUint8)
	case coltype.WrUShort:
		return parseUintLike(func(ci *coltype.Info, dec convert.Decoder[uint16], out []byte, start, lastRowInExtent int64) convert.Stats {
			return convert.USmallInt(ci, dec, out, start, lastRowInExtent)
		}, 2, parseUint16)
	case coltype.WrUInt:
		return parseUintLike(func(ci *coltype.Info, dec convert.Decoder[uint32], out []byte, start, lastRowInExtent int64) convert.Stats {
			return convert.UInt(ci, dec, out, start, lastRowInExtent)
		}, 4, parseUint32)
	case coltype.WrULongLong:
		return parseUintLike(func(ci *coltype.Info, dec convert.Decoder[uint64], out []byte, start, lastRowInExtent int64) convert.Stats {
			return convert.UBigInt(ci, dec, out, start, lastRowInExtent)
		}, 8, parseUint64)
	case coltype.WrFloat:
		return parseFloatLike(func(ci *coltype.Info, dec convert.Decoder[float32], out []byte, start, lastRowInExtent int64) convert.Stats {
			return convert.Float(ci, dec, out, start, lastRowInExtent)
		}, 4, parseFloat32)
	case coltype.WrDouble:
		return parseFloatLike(func(ci *coltype.Info, dec convert.Decoder[float64], out []byte, start, lastRowInExtent int64) convert.Stats {
			return convert.Double(ci, dec, out, start, lastRowInExtent)
		}, 8, parseFloat64)
	case coltype.WrChar:
		return parseChar
	case coltype.WrDict:
		return parseDict
	default:
		return parseUnsupported
	}
}

func parseUnsupported(col *Column, buf *rowbuf.Buffer, rowOffset, n int, startInputRow int64, opts TextOptions, sink *reject.Sink) error {
	return errcode.NewInvariant("no text-path parser wired for column %s (weType %v); Arrow-path calendar/decimal conversions are driven directly by the Parquet reader, see pkg/bulkload/source", col.Info.ColName, col.Info.WeType)
}

func parseInt8(s string) (int8, bool)   { v, err := strconv.ParseInt(s, 10, 8); return int8(v), err == nil }
func parseInt16(s string) (int16, bool) { v, err := strconv.ParseInt(s, 10, 16); return int16(v), err == nil }
func parseInt32(s string) (int32, bool) { v, err := strconv.ParseInt(s, 10, 32); return int32(v), err == nil }
func parseInt64(s string) (int64, bool) { v, err := strconv.ParseInt(s, 10, 64); return v, err == nil }
func parseUint8(s string) (uint8, bool) { v, err := strconv.ParseUint(s, 10, 8); return uint8(v), err == nil }
func parseUint16(s string) (uint16, bool) {
	v, err := strconv.ParseUint(s, 10, 16)
	return uint16(v), err == nil
}
func parseUint32(s string) (uint32, bool) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err == nil
}
func parseUint64(s string) (uint64, bool) { v, err := strconv.ParseUint(s, 10, 64); return v, err == nil }
func parseFloat32(s string) (float32, bool) {
	v, err := strconv.ParseFloat(s, 32)
	return float32(v), err == nil
}
func parseFloat64(s string) (float64, bool) { v, err := strconv.ParseFloat(s, 64); return v, err == nil }

// reserveAndWrite asks col.Mgr for a Section covering n rows starting
// at startInputRow, hands its scratch buffer to fill, and releases it.
func reserveAndWrite(col *Column, startInputRow int64, n int, fill func(out []byte, lastRowInExtent int64) convert.Stats) error {
	sec, lastRowInExtent, err := col.Mgr.Reserve(startInputRow, n)
	if err != nil {
		return err
	}
	fill(sec.Bytes(), lastRowInExtent)
	return col.Mgr.Release(sec)
}

func parseIntLike[T convert.Numeric](
	convertFn func(ci *coltype.Info, dec convert.Decoder[T], out []byte, start, lastRowInExtent int64) convert.Stats,
	width int,
	parse func(string) (T, bool),
) parseFunc {
	return func(col *Column, buf *rowbuf.Buffer, rowOffset, n int, startInputRow int64, opts TextOptions, sink *reject.Sink) error {
		d := &rowDecoder{buf: buf, rowOffset: rowOffset, col: col, opts: opts, sink: sink}
		dec := func(i int) (v T, isNull bool, isErr bool, reason string) {
			raw, isNull := d.field(i)
			if isNull {
				return v, true, false, ""
			}
			parsed, ok := parse(strings.TrimSpace(string(raw)))
			if !ok {
				reason = "invalid numeric literal: " + string(raw)
				d.reject(i, reason)
				return v, false, true, reason
			}
			return parsed, false, false, ""
		}
		return reserveAndWrite(col, startInputRow, n, func(out []byte, lastRowInExtent int64) convert.Stats {
			return convertFn(col.Info, dec, out, startInputRow, lastRowInExtent)
		})
	}
}

func parseUintLike[T convert.Numeric](
	convertFn func(ci *coltype.Info, dec convert.Decoder[T], out []byte, start, lastRowInExtent int64) convert.Stats,
	width int,
	parse func(string) (T, bool),
) parseFunc {
	return parseIntLike(convertFn, width, parse)
}

func parseFloatLike[T convert.Numeric](
	convertFn func(ci *coltype.Info, dec convert.Decoder[T], out []byte, start, lastRowInExtent int64) convert.Stats,
	width int,
	parse func(string) (T, bool),
) parseFunc {
	return parseIntLike(convertFn, width, parse)
}

func parseChar(col *Column, buf *rowbuf.Buffer, rowOffset, n int, startInputRow int64, opts TextOptions, sink *reject.Sink) error {
	d := &rowDecoder{buf: buf, rowOffset: rowOffset, col: col, opts: opts, sink: sink}
	dec := func(i int) (v string, isNull bool) {
		raw, isNull := d.field(i)
		if isNull {
			return "", true
		}
		return string(raw), false
	}
	return reserveAndWrite(col, startInputRow, n, func(out []byte, lastRowInExtent int64) convert.Stats {
		return convert.Char(col.Info, dec, out, startInputRow, lastRowInExtent)
	})
}

func parseDict(col *Column, buf *rowbuf.Buffer, rowOffset, n int, startInputRow int64, opts TextOptions, sink *reject.Sink) error {
	d := &rowDecoder{buf: buf, rowOffset: rowOffset, col: col, opts: opts, sink: sink}
	dec := func(i int) (v []byte, isNull bool) {
		raw, isNull := d.field(i)
		return raw, isNull
	}
	return reserveAndWrite(col, startInputRow, n, func(out []byte, lastRowInExtent int64) convert.Stats {
		stats, err := convert.Dict(col.Info, col.Dict, dec, out, startInputRow, lastRowInExtent)
		if err != nil {
			stats.ErrorRows = append(stats.ErrorRows, convert.RowError{Reason: err.Error()})
		}
		return stats
	})
}
