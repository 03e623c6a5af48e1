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

import "math/big"

// Decimal128 is a signed 128-bit integer, the on-disk encoding for the
// widest COLUMNSTORE_DECIMAL columns. It stores the unscaled integer;
// the scale lives in ColumnInfo, not in the value.
type Decimal128 struct {
	Lo uint64
	Hi int64
}

// Decimal128Null is the fixed null sentinel for 16-byte decimal columns.
var Decimal128Null = Decimal128{Lo: 0, Hi: -1 << 63}

// Decimal128Min / Decimal128Max are the widest representable values,
// used as the CP accumulator's reset identity (§4.4 CP rollover).
var (
	Decimal128Max = Decimal128{Lo: ^uint64(0), Hi: (1 << 63) - 1}
	Decimal128Min = Decimal128{Lo: 0, Hi: -1 << 63}
)

func (d Decimal128) big() *big.Int {
	b := new(big.Int).SetUint64(d.Lo)
	hi := new(big.Int).SetInt64(d.Hi)
	hi.Lsh(hi, 64)
	return b.Add(b, hi)
}

func fromBig(b *big.Int) Decimal128 {
	mask := new(big.Int).SetUint64(^uint64(0))
	lo := new(big.Int).And(b, mask)
	hi := new(big.Int).Rsh(b, 64)
	return Decimal128{Lo: lo.Uint64(), Hi: hi.Int64()}
}

// Cmp returns -1, 0, 1 comparing d to other, signed.
func (d Decimal128) Cmp(other Decimal128) int {
	return d.big().Cmp(other.big())
}

// Rescale multiplies or divides d by 10^|deltaScale|, rounding on
// narrowing (deltaScale<0 means target scale is smaller), and reports
// whether the result overflowed 128 bits (|result| would not fit).
func (d Decimal128) Rescale(deltaScale int) (Decimal128, bool) {
	v := d.big()
	ten := big.NewInt(10)
	if deltaScale > 0 {
		factor := new(big.Int).Exp(ten, big.NewInt(int64(deltaScale)), nil)
		v.Mul(v, factor)
	} else if deltaScale < 0 {
		factor := new(big.Int).Exp(ten, big.NewInt(int64(-deltaScale)), nil)
		q, r := new(big.Int).QuoRem(v, factor, new(big.Int))
		half := new(big.Int).Rsh(factor, 1)
		if new(big.Int).Abs(r).Cmp(half) >= 0 {
			if v.Sign() < 0 {
				q.Sub(q, big.NewInt(1))
			} else {
				q.Add(q, big.NewInt(1))
			}
		}
		v = q
	}
	max := new(big.Int).Lsh(big.NewInt(1), 127)
	min := new(big.Int).Neg(max)
	max.Sub(max, big.NewInt(1))
	if v.Cmp(max) > 0 || v.Cmp(min) < 0 {
		return Decimal128{}, true
	}
	return fromBig(v), false
}

// Saturate clamps d to [min, max], reporting whether it clamped.
func (d Decimal128) Saturate(min, max Decimal128) (Decimal128, bool) {
	if d.Cmp(min) < 0 {
		return min, true
	}
	if d.Cmp(max) > 0 {
		return max, true
	}
	return d, false
}
