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
	"github.com/colstore/bulkimport/pkg/bulkload/dict"
)

// Dict converts a dictionary-encoded column chunk: every non-null
// string is tokenized via w and written as its 8-byte token (spec
// §4.3). Dictionary columns do not participate in CP (token order
// carries no ordering meaning), so no accumulator is touched here
// beyond the boundary bookkeeping MaybeRollCP performs for every
// column so LastInputRowInExtent stays correct for its sibling
// columns' extents, which all advance together (one stripe per spec
// §4.2).
func Dict(ci *coltype.Info, w *dict.Writer, dec func(i int) (v []byte, isNull bool), out []byte, startRow, lastRowInExtent int64) (Stats, error) {
	var stats Stats
	count := len(out) / 8
	for i := 0; i < count; i++ {
		row := startRow + int64(i)
		ci.MaybeRollCP(row, lastRowInExtent)

		v, isNull := dec(i)
		var tok uint64
		if isNull {
			tok = w.NullToken()
		} else {
			t, err := w.Token(v)
			if err != nil {
				return stats, err
			}
			tok = t
		}
		binary.LittleEndian.PutUint64(out[i*8:(i+1)*8], tok)
	}
	ci.DictFlushBlocks = append(ci.DictFlushBlocks, w.FlushBlocks()...)
	return stats, nil
}
