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

package colbuf

// ExtentInfo is the immutable snapshot BRM returns for one allocated
// extent (spec §3 DBRootExtentInfo).
type ExtentInfo struct {
	DBRoot, Partition, Segment int
	StartLBID                  int64
	AllocSize                  int64 // rows
	HWM                        uint64
}

// Allocator is the per-table stripe allocator's view of BRM: all
// columns of a table share DBRoot/partition/segment, so one call
// allocates the next extent for every column at once (spec §4.2
// allocateBRMColumnExtent). It is an external collaborator — the real
// implementation talks to the networked Block Resolution Manager; this
// package only depends on the interface.
type Allocator interface {
	// AllocateStripe asks BRM for the next extent of every column in
	// colWidths (keyed by column ordinal), returning one ExtentInfo per
	// column in the same order.
	AllocateStripe(tableOID uint32, colWidths []int) ([]ExtentInfo, error)
}
