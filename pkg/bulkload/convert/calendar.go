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

package convert

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/colstore/bulkimport/pkg/bulkload/coltype"
)

// DateVal is a calendar date as decoded from either text or an Arrow
// date32 column (days since the Unix epoch, per Arrow's date32 unit).
type DateVal struct {
	Year  int
	Month int
	Day   int
}

func packDate(d DateVal) uint32 {
	return uint32(d.Day) | uint32(d.Month)<<5 | uint32(d.Year)<<9
}

// DatetimeVal is a calendar timestamp with microsecond precision and no
// timezone offset (ColumnStore DATETIME/TIMESTAMP carry local wall-clock
// fields, not an absolute instant).
type DatetimeVal struct {
	Year, Month, Day    int
	Hour, Minute, Second int
	Microsecond         int
}

func packDatetime(d DatetimeVal) int64 {
	v := int64(d.Microsecond) & (1<<20 - 1)
	v |= int64(d.Second&0x3F) << 20
	v |= int64(d.Minute&0x3F) << 26
	v |= int64(d.Hour&0x1F) << 32
	v |= int64(d.Day&0x1F) << 37
	v |= int64(d.Month&0xF) << 42
	v |= int64(d.Year&0xFFFF) << 46
	return v
}

// DateDecoder produces the i'th element's calendar date, or reports it
// null/erroneous (a malformed literal, or an out-of-range Arrow value).
type DateDecoder func(i int) (v DateVal, isNull bool, isErr bool, reason string)

// ConvertArrowColumnDate converts a DATE column chunk, packing each
// calendar date into the 4-byte on-disk layout and folding it into the
// narrow unsigned CP accumulator (dates compare as their packed
// unsigned bit pattern, which preserves chronological order because
// year occupies the high bits).
func ConvertArrowColumnDate(ci *coltype.Info, dec DateDecoder, out []byte, startRow, lastRowInExtent int64) Stats {
	var stats Stats
	count := len(out) / 4
	for i := 0; i < count; i++ {
		row := startRow + int64(i)
		ci.MaybeRollCP(row, lastRowInExtent)

		v, isNull, isErr, reason := dec(i)
		var packed uint32
		switch {
		case isErr:
			stats.ErrorRows = append(stats.ErrorRows, RowError{Index: i, Reason: reason})
			stats.Saturated++
			packed = coltype.DateNull
		case isNull && ci.FWithDefault:
			// DefaultInt carries the default literal pre-packed, same
			// convention as convert.Decimal's default handling.
			packed = uint32(ci.DefaultInt)
		case isNull:
			packed = coltype.DateNull
		default:
			packed = packDate(v)
			ci.ExtendU(uint64(packed))
		}
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], packed)
	}
	if stats.Saturated > 0 {
		ci.IncrSaturated(stats.Saturated)
	}
	return stats
}

// DatetimeDecoder produces the i'th element's calendar timestamp.
type DatetimeDecoder func(i int) (v DatetimeVal, isNull bool, isErr bool, reason string)

// convertArrowColumnDatetime converts a DATETIME or TIMESTAMP column
// chunk (the two share an on-disk 8-byte packed layout; TIMESTAMP's
// distinction from DATETIME is the session timezone applied upstream of
// this routine, per the reviewed source).
func convertArrowColumnDatetime(ci *coltype.Info, dec DatetimeDecoder, out []byte, startRow, lastRowInExtent int64) Stats {
	var stats Stats
	count := len(out) / 8
	for i := 0; i < count; i++ {
		row := startRow + int64(i)
		ci.MaybeRollCP(row, lastRowInExtent)

		v, isNull, isErr, reason := dec(i)
		var packed int64
		switch {
		case isErr:
			stats.ErrorRows = append(stats.ErrorRows, RowError{Index: i, Reason: reason})
			stats.Saturated++
			packed = coltype.DatetimeNull
		case isNull:
			packed = coltype.DatetimeNull
		default:
			packed = packDatetime(v)
			ci.ExtendI(packed)
		}
		binary.LittleEndian.PutUint64(out[i*8:(i+1)*8], uint64(packed))
	}
	if stats.Saturated > 0 {
		ci.IncrSaturated(stats.Saturated)
	}
	return stats
}

// ConvertArrowColumnDatetime converts a DATETIME column chunk.
func ConvertArrowColumnDatetime(ci *coltype.Info, dec DatetimeDecoder, out []byte, startRow, lastRowInExtent int64) Stats {
	return convertArrowColumnDatetime(ci, dec, out, startRow, lastRowInExtent)
}

// ConvertArrowColumnTimestamp converts a TIMESTAMP column chunk.
func ConvertArrowColumnTimestamp(ci *coltype.Info, dec DatetimeDecoder, out []byte, startRow, lastRowInExtent int64) Stats {
	return convertArrowColumnDatetime(ci, dec, out, startRow, lastRowInExtent)
}

// TimeVal is a TIME-of-day value: signed, because MySQL/ColumnStore TIME
// spans -838:59:59 to 838:59:59 and is as much an elapsed duration as a
// clock reading.
type TimeVal struct {
	Negative bool
	Hour, Minute, Second int
	Microsecond          int
}

func packTime(t TimeVal) int64 {
	mag := int64(t.Hour)*3600000000 + int64(t.Minute)*60000000 + int64(t.Second)*1000000 + int64(t.Microsecond)
	if t.Negative {
		return -mag
	}
	return mag
}

// TimeDecoder produces the i'th element's time-of-day value.
type TimeDecoder func(i int) (v TimeVal, isNull bool, isErr bool, reason string)

// convertArrowColumnTime converts a TIME column chunk, regardless of
// whether the Arrow source column was time32 (second/millisecond unit)
// or time64 (microsecond/nanosecond unit): unit normalization to
// microseconds happens in the caller-supplied TimeDecoder, matching the
// reviewed source's split into two entry points that both bottom out in
// one packing routine.
func convertArrowColumnTime(ci *coltype.Info, dec TimeDecoder, out []byte, startRow, lastRowInExtent int64) Stats {
	var stats Stats
	count := len(out) / 8
	for i := 0; i < count; i++ {
		row := startRow + int64(i)
		ci.MaybeRollCP(row, lastRowInExtent)

		v, isNull, isErr, reason := dec(i)
		var packed int64
		switch {
		case isErr:
			stats.ErrorRows = append(stats.ErrorRows, RowError{Index: i, Reason: reason})
			stats.Saturated++
			packed = coltype.TimeNull
		case isNull:
			packed = coltype.TimeNull
		default:
			packed = packTime(v)
			ci.ExtendI(packed)
		}
		binary.LittleEndian.PutUint64(out[i*8:(i+1)*8], uint64(packed))
	}
	if stats.Saturated > 0 {
		ci.IncrSaturated(stats.Saturated)
	}
	return stats
}

// ConvertArrowColumnTime32 converts a TIME column chunk sourced from an
// Arrow time32 array (second or millisecond unit, normalized upstream).
func ConvertArrowColumnTime32(ci *coltype.Info, dec TimeDecoder, out []byte, startRow, lastRowInExtent int64) Stats {
	return convertArrowColumnTime(ci, dec, out, startRow, lastRowInExtent)
}

// ConvertArrowColumnTime64 converts a TIME column chunk sourced from an
// Arrow time64 array (microsecond or nanosecond unit, normalized
// upstream).
func ConvertArrowColumnTime64(ci *coltype.Info, dec TimeDecoder, out []byte, startRow, lastRowInExtent int64) Stats {
	return convertArrowColumnTime(ci, dec, out, startRow, lastRowInExtent)
}

// ParseDate parses a text-path DATE literal ("2006-01-02" or
// "2006/01/02"), per spec §4.4 "text-path converters parse the textual
// value under delimiter/enclosure/escape rules" — enclosure/escape
// stripping happens in the field tokenizer before this is called.
func ParseDate(s string) (DateVal, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateVal{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, true
		}
	}
	return DateVal{}, false
}

// ParseDatetime parses a text-path DATETIME/TIMESTAMP literal.
func ParseDatetime(s string) (DatetimeVal, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02 15:04:05.999999", "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DatetimeVal{
				Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
				Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(),
				Microsecond: t.Nanosecond() / 1000,
			}, true
		}
	}
	return DatetimeVal{}, false
}

// ParseTime parses a text-path TIME literal ("HH:MM:SS[.ffffff]",
// optionally negative).
func ParseTime(s string) (TimeVal, bool) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return TimeVal{}, false
	}
	secParts := strings.SplitN(parts[2], ".", 2)
	hour, ok1 := atoiLenient(parts[0])
	minute, ok2 := atoiLenient(parts[1])
	second, ok3 := atoiLenient(secParts[0])
	if !ok1 || !ok2 || !ok3 {
		return TimeVal{}, false
	}
	usec := 0
	if len(secParts) == 2 {
		frac := secParts[1]
		for len(frac) < 6 {
			frac += "0"
		}
		if v, ok := atoiLenient(frac[:6]); ok {
			usec = v
		}
	}
	return TimeVal{Negative: neg, Hour: hour, Minute: minute, Second: second, Microsecond: usec}, true
}

func atoiLenient(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
