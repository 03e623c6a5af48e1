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

// Package hwm implements HWMValidator (spec §4.6): checks that every
// column's high-water-mark location is consistent with its peers of the
// same on-disk width, and that widths cross-check against each other.
package hwm

import (
	"sort"

	"github.com/colstore/bulkimport/pkg/bulkload/errcode"
)

// ColumnHWM is the location triple plus HWM a column publishes for
// cross-checking.
type ColumnHWM struct {
	ColName               string
	Width                 int
	DBRoot, Partition, Segment int
	LocalHWM              uint64
}

var supportedWidths = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true}

// Validate implements validateColumnHWMs: groups cols by width, checks
// same-width agreement, then checks every pair of width classes for the
// m = w2/w1 ratio bound from spec §4.6.
func Validate(cols []ColumnHWM) error {
	byWidth := make(map[int][]ColumnHWM)
	for _, c := range cols {
		if !supportedWidths[c.Width] {
			return errcode.NewBRMUnsuppWidth(c.Width)
		}
		byWidth[c.Width] = append(byWidth[c.Width], c)
	}

	for w, group := range byWidth {
		ref := group[0]
		for _, c := range group[1:] {
			if c.DBRoot != ref.DBRoot || c.Partition != ref.Partition ||
				c.Segment != ref.Segment || c.LocalHWM != ref.LocalHWM {
				return errcode.NewBRMHWMsNotEqual(w, ref.ColName, c.ColName)
			}
		}
	}

	widths := make([]int, 0, len(byWidth))
	for w := range byWidth {
		widths = append(widths, w)
	}
	sort.Ints(widths)

	for i, w1 := range widths {
		for _, w2 := range widths[i+1:] {
			narrow, wide := byWidth[w1][0], byWidth[w2][0]
			m := uint64(w2 / w1)
			lo := narrow.LocalHWM * m
			hi := lo + m - 1
			if wide.LocalHWM < lo || wide.LocalHWM > hi {
				return errcode.NewBRMHWMsOutOfSync(narrow.ColName, wide.ColName, narrow.LocalHWM, wide.LocalHWM)
			}
		}
	}
	return nil
}
