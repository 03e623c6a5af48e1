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
	"unicode/utf8"

	"github.com/colstore/bulkimport/pkg/bulkload/coltype"
)

// Char converts a CHAR/VARCHAR column chunk: truncates at a UTF-8 safe
// boundary not exceeding definedWidth (spec §4.4 step 4), pads to
// Width with trailing zero bytes, and tracks min/max as a byte-order
// comparison (CHAR CP ordering is lexicographic on the raw bytes).
func Char(ci *coltype.Info, dec func(i int) (v string, isNull bool), out []byte, startRow, lastRowInExtent int64) Stats {
	var stats Stats
	width := ci.Width
	definedWidth := ci.DefinedWidth
	if definedWidth <= 0 || definedWidth > width {
		definedWidth = width
	}
	count := len(out) / width

	for i := 0; i < count; i++ {
		row := startRow + int64(i)
		ci.MaybeRollCP(row, lastRowInExtent)

		dst := out[i*width : (i+1)*width]
		v, isNull := dec(i)

		switch {
		case isNull && ci.FWithDefault:
			v, isNull = ci.DefaultString, false
		case isNull:
			copy(dst, coltype.CharNull(width))
			continue
		}

		truncated := utf8TruncatePoint(v, definedWidth)
		if truncated < len(v) {
			stats.Saturated++
		}
		n := copy(dst, v[:truncated])
		for ; n < width; n++ {
			dst[n] = 0
		}
		extendCharCP(ci, dst)
	}
	if stats.Saturated > 0 {
		ci.IncrSaturated(stats.Saturated)
	}
	return stats
}

// utf8TruncatePoint returns the largest byte length <= maxBytes that
// does not split a UTF-8 rune, matching the reviewed source's
// utf8_truncate_point.
func utf8TruncatePoint(s string, maxBytes int) int {
	if len(s) <= maxBytes {
		return len(s)
	}
	n := maxBytes
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

// extendCharCP folds the fixed-width CHAR bytes into the narrow unsigned
// accumulator using unsigned byte-lexicographic comparison, the same
// "unsigned types use unsigned semantics on both sides" rule spec §4.4
// states for numeric columns, applied here to raw bytes.
func extendCharCP(ci *coltype.Info, v []byte) {
	key := bytesToUint64(v)
	ci.ExtendU(key)
}

func bytesToUint64(v []byte) uint64 {
	var out uint64
	for i := 0; i < 8; i++ {
		out <<= 8
		if i < len(v) {
			out |= uint64(v[i])
		}
	}
	return out
}
