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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/bulkimport/pkg/bulkload/brm"
	"github.com/colstore/bulkimport/pkg/bulkload/coltype"
)

func TestBrmAllocatorAllocateStripeTranslatesLocationsToExtents(t *testing.T) {
	client := brm.NewInMemory([]int{1})
	alloc := &brmAllocator{client: client, colOID: 9}

	infos, err := alloc.AllocateStripe(1, []int{4})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, coltype.RowsPerExtent(4), infos[0].AllocSize)

	loc, err := client.CurrentLocation(9)
	require.NoError(t, err)
	require.Equal(t, loc.DBRoot, infos[0].DBRoot)
	require.Equal(t, loc.LocalHWM, infos[0].HWM)
}

func TestNewColumnBufferManagerAllocatesStartingExtentFromBRM(t *testing.T) {
	client := brm.NewInMemory([]int{1})
	ci := coltype.NewInfo(coltype.Static{ColName: "n", WeType: coltype.WrInt, Width: 4, MapOID: 11, MinIntSat: -1000, MaxIntSat: 1000})
	w := &fieldsMemWriter{}

	mgr, err := NewColumnBufferManager(ci, client, w)
	require.NoError(t, err)
	require.NotNil(t, mgr)

	extent := mgr.CurrentExtent()
	loc, err := client.CurrentLocation(11)
	require.NoError(t, err)
	require.Equal(t, loc.DBRoot, extent.DBRoot)
}
