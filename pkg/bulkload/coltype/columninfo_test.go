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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowsPerExtent(t *testing.T) {
	require.Equal(t, int64(8*1024*1024), RowsPerExtent(1))
	require.Equal(t, int64(2*1024*1024), RowsPerExtent(4))
	require.Equal(t, int64(1024*1024), RowsPerExtent(8))
	require.Equal(t, int64(1024*1024), RowsPerExtent(0), "width<=0 falls back to width 8")
}

func TestCPAccumulatorResetIdentityNeverWins(t *testing.T) {
	var a CPAccumulator
	a.Reset()
	a.ExtendI(42)
	require.Equal(t, int64(42), a.MinI)
	require.Equal(t, int64(42), a.MaxI)

	a.ExtendI(10)
	a.ExtendI(100)
	require.Equal(t, int64(10), a.MinI)
	require.Equal(t, int64(100), a.MaxI)
}

func TestCPAccumulatorUnsignedAndFloat(t *testing.T) {
	var u CPAccumulator
	u.Unsigned = true
	u.Reset()
	u.ExtendU(5)
	u.ExtendU(1)
	require.Equal(t, uint64(1), u.MinU)
	require.Equal(t, uint64(5), u.MaxU)

	var f CPAccumulator
	f.IsFloat = true
	f.Reset()
	f.ExtendF(-1.5)
	f.ExtendF(2.5)
	require.Equal(t, -1.5, f.MinF)
	require.Equal(t, 2.5, f.MaxF)
}

func TestInfoMaybeRollCPFlushesOnBoundary(t *testing.T) {
	ci := NewInfo(Static{ColName: "id", WeType: WrInt, Width: 4})
	rpe := RowsPerExtent(4)

	// The first call just primes LastInputRowInExtent from the caller's
	// authoritative boundary: there is no completed extent yet to flush.
	ci.MaybeRollCP(0, rpe)
	require.Equal(t, rpe, ci.LastInputRowInExtent)
	require.Empty(t, ci.CPHistory)

	ci.ExtendI(7)
	ci.MaybeRollCP(rpe-1, rpe) // below boundary: no-op
	require.Empty(t, ci.CPHistory)

	ci.MaybeRollCP(rpe, 2*rpe) // at boundary: rolls, adopting the new boundary
	require.Len(t, ci.CPHistory, 1)
	require.Equal(t, int64(7), ci.CPHistory[0].MaxI)
	require.Equal(t, 2*rpe, ci.LastInputRowInExtent)
}

func TestInfoFlushCPAppendsFinalPartialExtent(t *testing.T) {
	ci := NewInfo(Static{ColName: "id", WeType: WrInt, Width: 4})
	ci.ExtendI(3)
	ci.FlushCP()
	require.Len(t, ci.SnapshotCPHistory(), 1)
	require.Equal(t, int64(3), ci.SnapshotCPHistory()[0].MaxI)
}

func TestInfoReserveAutoIncNumsIsBatchedNotPerElement(t *testing.T) {
	ci := NewInfo(Static{ColName: "id", WeType: WrInt, Width: 4, AutoIncFlag: true})
	require.Equal(t, int64(1), ci.CurrentAutoIncNext())

	first := ci.ReserveAutoIncNums(100)
	require.Equal(t, int64(1), first)
	require.Equal(t, int64(101), ci.CurrentAutoIncNext())

	second := ci.ReserveAutoIncNums(50)
	require.Equal(t, int64(101), second)
}

func TestIsDict(t *testing.T) {
	plain := Static{WeType: WrInt}
	require.False(t, plain.IsDict())

	dictCol := Static{WeType: WrDict, Dictionary: &DictionaryInfo{DctnryOID: 7}}
	require.True(t, dictCol.IsDict())
}

func TestCharNull(t *testing.T) {
	b := CharNull(4)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFE}, b)
}
