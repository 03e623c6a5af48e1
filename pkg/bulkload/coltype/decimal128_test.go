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

func d128(v int64) Decimal128 {
	if v < 0 {
		return Decimal128{Lo: uint64(v), Hi: -1}
	}
	return Decimal128{Lo: uint64(v), Hi: 0}
}

func TestDecimal128Cmp(t *testing.T) {
	require.Equal(t, -1, d128(1).Cmp(d128(2)))
	require.Equal(t, 0, d128(5).Cmp(d128(5)))
	require.Equal(t, 1, d128(2).Cmp(d128(1)))
	require.Equal(t, -1, d128(-5).Cmp(d128(5)))
}

func TestDecimal128RescaleUp(t *testing.T) {
	got, overflow := d128(123).Rescale(2)
	require.False(t, overflow)
	require.Equal(t, 0, got.Cmp(d128(12300)))
}

func TestDecimal128RescaleDownRounds(t *testing.T) {
	got, overflow := d128(150).Rescale(-2)
	require.False(t, overflow)
	require.Equal(t, 0, got.Cmp(d128(2)), "150 scaled down by 2 rounds the exact half away from zero, to 2")

	got, overflow = d128(-150).Rescale(-2)
	require.False(t, overflow)
	require.Equal(t, 0, got.Cmp(d128(-2)))

	got, overflow = d128(149).Rescale(-2)
	require.False(t, overflow)
	require.Equal(t, 0, got.Cmp(d128(1)))
}

func TestDecimal128RescaleOverflow(t *testing.T) {
	_, overflow := Decimal128Max.Rescale(5)
	require.True(t, overflow)
}

func TestDecimal128Saturate(t *testing.T) {
	lo, hi := d128(0), d128(100)

	v, clamped := d128(50).Saturate(lo, hi)
	require.False(t, clamped)
	require.Equal(t, 0, v.Cmp(d128(50)))

	v, clamped = d128(-1).Saturate(lo, hi)
	require.True(t, clamped)
	require.Equal(t, 0, v.Cmp(lo))

	v, clamped = d128(101).Saturate(lo, hi)
	require.True(t, clamped)
	require.Equal(t, 0, v.Cmp(hi))
}
