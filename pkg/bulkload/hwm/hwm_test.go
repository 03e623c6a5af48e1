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

package hwm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsMatchingSameWidthColumns(t *testing.T) {
	err := Validate([]ColumnHWM{
		{ColName: "a", Width: 4, DBRoot: 1, Partition: 0, Segment: 0, LocalHWM: 100},
		{ColName: "b", Width: 4, DBRoot: 1, Partition: 0, Segment: 0, LocalHWM: 100},
	})
	require.NoError(t, err)
}

func TestValidateRejectsUnsupportedWidth(t *testing.T) {
	err := Validate([]ColumnHWM{{ColName: "a", Width: 3, LocalHWM: 1}})
	require.Error(t, err)
}

func TestValidateRejectsDisagreeingSameWidthLocation(t *testing.T) {
	err := Validate([]ColumnHWM{
		{ColName: "a", Width: 4, DBRoot: 1, LocalHWM: 100},
		{ColName: "b", Width: 4, DBRoot: 2, LocalHWM: 100},
	})
	require.Error(t, err)
}

func TestValidateRejectsDisagreeingSameWidthHWM(t *testing.T) {
	err := Validate([]ColumnHWM{
		{ColName: "a", Width: 4, LocalHWM: 100},
		{ColName: "b", Width: 4, LocalHWM: 101},
	})
	require.Error(t, err)
}

func TestValidateAcceptsCrossWidthWithinRatioBounds(t *testing.T) {
	// LocalHWM tracks byte offset, so a width-8 column's HWM runs 2x a
	// width-4 column's for the same row count.
	err := Validate([]ColumnHWM{
		{ColName: "narrow", Width: 4, LocalHWM: 40},
		{ColName: "wide", Width: 8, LocalHWM: 80},
	})
	require.NoError(t, err)
}

func TestValidateRejectsCrossWidthOutOfRatioBounds(t *testing.T) {
	err := Validate([]ColumnHWM{
		{ColName: "narrow", Width: 4, LocalHWM: 40},
		{ColName: "wide", Width: 8, LocalHWM: 90},
	})
	require.Error(t, err)
}

func TestValidateAcceptsThreeWidthClassesTogether(t *testing.T) {
	err := Validate([]ColumnHWM{
		{ColName: "w1", Width: 1, LocalHWM: 10},
		{ColName: "w4", Width: 4, LocalHWM: 40},
		{ColName: "w8", Width: 8, LocalHWM: 80},
	})
	require.NoError(t, err)
}

func TestValidateEmptyInputIsFine(t *testing.T) {
	require.NoError(t, Validate(nil))
}
