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

	"github.com/colstore/bulkimport/pkg/bulkload/coltype"
)

// DecimalDecoder produces the i'th element's unscaled 128-bit integer at
// the column's SourceScale, or reports it null/erroneous. Decimal128
// does not satisfy Numeric (it is not a machine integer), so it gets
// its own driver rather than folding into DriveNarrow.
type DecimalDecoder func(i int) (v coltype.Decimal128, isNull bool, isErr bool, reason string)

// Decimal converts a 16-byte DECIMAL column chunk: rescales every
// non-null input from ci.SourceScale to ci.TargetScale, saturates
// against ci.MinDecSat/MaxDecSat, and folds the result into the wide CP
// accumulator (spec §4.4 step 2: "for decimals, interpret the input as
// 128-bit integer with source scale and rescale to target scale,
// saturating on overflow").
func Decimal(ci *coltype.Info, dec DecimalDecoder, out []byte, startRow, lastRowInExtent int64) Stats {
	var stats Stats
	deltaScale := ci.TargetScale - ci.SourceScale
	count := len(out) / 16

	for i := 0; i < count; i++ {
		row := startRow + int64(i)
		ci.MaybeRollCP(row, lastRowInExtent)

		v, isNull, isErr, reason := dec(i)
		if isErr {
			stats.ErrorRows = append(stats.ErrorRows, RowError{Index: i, Reason: reason})
			encodeDecimal128(coltype.Decimal128Null, out[i*16:(i+1)*16])
			continue
		}
		if isNull {
			if !ci.FWithDefault {
				encodeDecimal128(coltype.Decimal128Null, out[i*16:(i+1)*16])
				continue
			}
			// DefaultInt carries the default's unscaled value already
			// expressed at SourceScale, same as a parsed literal would be.
			v = coltype.Decimal128{Lo: uint64(ci.DefaultInt), Hi: -1}
			if ci.DefaultInt >= 0 {
				v.Hi = 0
			}
		}

		rescaled, overflow := v.Rescale(deltaScale)
		if overflow {
			if v.Cmp(coltype.Decimal128{}) < 0 {
				rescaled = ci.MinDecSat
			} else {
				rescaled = ci.MaxDecSat
			}
			stats.Saturated++
		} else if sat, clamped := rescaled.Saturate(ci.MinDecSat, ci.MaxDecSat); clamped {
			rescaled = sat
			stats.Saturated++
		}

		ci.ExtendD(rescaled)
		encodeDecimal128(rescaled, out[i*16:(i+1)*16])
	}
	if stats.Saturated > 0 {
		ci.IncrSaturated(stats.Saturated)
	}
	return stats
}

func encodeDecimal128(d coltype.Decimal128, out []byte) {
	binary.LittleEndian.PutUint64(out[0:8], d.Lo)
	binary.LittleEndian.PutUint64(out[8:16], uint64(d.Hi))
}
