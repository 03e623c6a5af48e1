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

package rollback

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollback.json")
	w := New(path)
	require.NoError(t, w.Init())

	meta := Metadata{
		TableOID:     7,
		ProcessOwner: "bulkimport-1234",
		Segments: []SegmentSnapshot{
			{ColName: "id", DBRoot: 1, Partition: 0, Segment: 0, LocalHWM: 10},
		},
		OrigDbRootIds: []int{1, 2},
	}
	require.NoError(t, w.Save(meta))

	got, err := w.Load()
	require.NoError(t, err)
	require.Equal(t, meta, got)
}

func TestDeleteMissingFileIsNotAnError(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "never-created.json"))
	require.NoError(t, w.Delete())
}

func TestDeleteRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollback.json")
	w := New(path)
	require.NoError(t, w.Init())
	require.NoError(t, w.Delete())
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

type fakeRestorer struct {
	restored []string
	failOn   string
}

func (r *fakeRestorer) RestoreTo(colName string, dbRoot, partition, segment int, localHWM uint64) error {
	if colName == r.failOn {
		return errFakeRestore
	}
	r.restored = append(r.restored, colName)
	return nil
}

var errFakeRestore = fakeErr("restore failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func TestRollbackRestoresEverySegment(t *testing.T) {
	restorer := &fakeRestorer{}
	m := &Manager{
		CurrentDbRootIds: func() []int { return []int{1, 2} },
		Restorer:         restorer,
	}
	meta := Metadata{
		OrigDbRootIds: []int{1},
		Segments: []SegmentSnapshot{
			{ColName: "a", DBRoot: 1}, {ColName: "b", DBRoot: 1},
		},
	}
	require.NoError(t, m.Rollback(meta))
	require.Equal(t, []string{"a", "b"}, restorer.restored)
}

func TestRollbackRefusesWhenOriginalDbRootNoLongerOwned(t *testing.T) {
	m := &Manager{
		CurrentDbRootIds: func() []int { return []int{2} },
		Restorer:         &fakeRestorer{},
	}
	meta := Metadata{OrigDbRootIds: []int{1}}
	require.Error(t, m.Rollback(meta))
}

func TestRollbackPropagatesRestorerError(t *testing.T) {
	restorer := &fakeRestorer{failOn: "b"}
	m := &Manager{
		CurrentDbRootIds: func() []int { return []int{1} },
		Restorer:         restorer,
	}
	meta := Metadata{
		OrigDbRootIds: []int{1},
		Segments: []SegmentSnapshot{
			{ColName: "a", DBRoot: 1}, {ColName: "b", DBRoot: 1},
		},
	}
	require.Error(t, m.Rollback(meta))
	require.Equal(t, []string{"a"}, restorer.restored)
}
