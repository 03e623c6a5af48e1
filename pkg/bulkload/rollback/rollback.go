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

// Package rollback implements the bulk-rollback metadata writer and
// manager of spec §4.7: a pre-import snapshot of every touched
// segment's HWM location, used to restore state on abnormal
// termination.
package rollback

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/colstore/bulkimport/pkg/bulkload/errcode"
)

// SegmentSnapshot is one column's starting location, captured before
// any write for this job touches it.
type SegmentSnapshot struct {
	ColName                    string
	DBRoot, Partition, Segment int
	LocalHWM                   uint64
	DctnryOID                  uint32 // 0 if not dictionary-encoded
}

// Metadata is the full pre-job snapshot persisted to the rollback file:
// every column's starting location plus the set of DBRoots this node
// owned when the job began (origDbRootIds, spec §4.7 step 2).
type Metadata struct {
	TableOID      uint32
	ProcessOwner  string
	Segments      []SegmentSnapshot
	OrigDbRootIds []int
}

// MetaWriter persists Metadata to a per-table file, owner-identified by
// the importing process, so a crashed process's rollback file can be
// recognized and cleaned up by a subsequent run or by the external
// cleartablelock tool.
type MetaWriter struct {
	mu   sync.Mutex
	path string
}

// New builds a MetaWriter for the rollback file at path.
func New(path string) *MetaWriter { return &MetaWriter{path: path} }

// Init implements initBulkRollbackMetaData: creates the file (failing
// if one already exists and is owned by a live process — that check is
// the caller's responsibility via table-lock acquisition, which must
// precede this call).
func (w *MetaWriter) Init() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errcode.NewRollbackMetaWrite(err)
	}
	return f.Close()
}

// Save implements saveBulkRollbackMetaData: overwrites the file with
// the full snapshot.
func (w *MetaWriter) Save(m Metadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	buf, err := json.Marshal(m)
	if err != nil {
		return errcode.NewRollbackMetaWrite(err)
	}
	if err := os.WriteFile(w.path, buf, 0o644); err != nil {
		return errcode.NewRollbackMetaWrite(err)
	}
	return nil
}

// Load reads back a previously saved Metadata, for rollback or for a
// recovery tool inspecting a crashed job's state.
func (w *MetaWriter) Load() (Metadata, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	buf, err := os.ReadFile(w.path)
	if err != nil {
		return Metadata{}, errcode.NewRollbackMetaWrite(err)
	}
	var m Metadata
	if err := json.Unmarshal(buf, &m); err != nil {
		return Metadata{}, errcode.NewRollbackMetaWrite(err)
	}
	return m, nil
}

// Delete removes the rollback file, implementing
// deleteMetaDataRollbackFile (spec §4.5 step 7, §4.7 step 4). Missing
// file is not an error: the finalize path and the rollback path both
// call this, and at most one of them will find the file present.
func (w *MetaWriter) Delete() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return errcode.NewRollbackMetaWrite(err)
	}
	return nil
}

// SegmentRestorer restores one column's segment file to its
// pre-snapshot state: truncating any extent allocated after the
// snapshot's LocalHWM and deleting blocks written past it. Implemented
// by the column-buffer manager, which owns the file handles.
type SegmentRestorer interface {
	RestoreTo(colName string, dbRoot, partition, segment int, localHWM uint64) error
}

// Manager implements BulkRollbackManager.rollback (spec §4.7 steps 1-3).
type Manager struct {
	CurrentDbRootIds func() []int
	Restorer         SegmentRestorer
}

// Rollback restores every snapshot's segment file, refusing if any
// starting DBRoot is no longer assigned to this node (spec §4.7 step 2:
// "the operator must run the external cleartablelock tool instead").
func (m *Manager) Rollback(meta Metadata) error {
	current := make(map[int]bool)
	for _, r := range m.CurrentDbRootIds() {
		current[r] = true
	}
	for _, root := range meta.OrigDbRootIds {
		if !current[root] {
			return errcode.NewBulkRollbackMissRoot(root)
		}
	}

	for _, seg := range meta.Segments {
		if err := m.Restorer.RestoreTo(seg.ColName, seg.DBRoot, seg.Partition, seg.Segment, seg.LocalHWM); err != nil {
			return err
		}
	}
	return nil
}
