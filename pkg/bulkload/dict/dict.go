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

// Package dict implements DictionaryWriter (spec §4.3): maps
// variable-length strings to fixed 8-byte tokens and extends the
// dictionary store file on demand.
package dict

import (
	"encoding/binary"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/colstore/bulkimport/pkg/bulkload/coltype"
	"github.com/colstore/bulkimport/pkg/bulkload/errcode"
)

// Store is the dictionary's backing variable-length file.
type Store interface {
	// Append writes buf at the current tail and returns the offset it
	// was written at.
	Append(buf []byte) (offset int64, err error)
	Sync() error
}

// block is one flushed dictionary block: the LBID-equivalent location
// the upstream cache must invalidate on finalize (spec §4.1/§4.5
// dictFlushBlocks).
type block struct {
	offset int64
	length int
}

// Writer deduplicates strings within one store extent, as the reviewed
// source's per-batch dedup policy does, and assigns each distinct
// string an 8-byte token. Equal strings within one extent share a
// token; across extents nothing is guaranteed, matching spec §4.3's
// "per-batch deduplication policy as implemented by the store."
type Writer struct {
	mu sync.Mutex

	store      Store
	compress   bool
	nextToken  uint64
	seen       map[string]uint64
	blocks     []block
	extentSize int64 // bytes; triggers dedup-table reset when exceeded
	curExtentBytes int64
}

// New builds a Writer over store. compress enables lz4 framing per
// block, the same pierrec/lz4 usage pattern used for on-disk blocks
// elsewhere in this storage stack.
func New(store Store, compress bool) *Writer {
	return &Writer{
		store:      store,
		compress:   compress,
		seen:       make(map[string]uint64),
		extentSize: 8 * 1024 * 1024,
	}
}

// Token returns s's token, writing a new dictionary block if s has not
// been seen in the current extent. A nil/empty-with-null input should
// not be passed here — callers check for null upstream and use
// coltype.DictNullToken directly (spec §4.3 "a null input yields the
// dictionary null token").
func (w *Writer) Token(s []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := string(s)
	if tok, ok := w.seen[key]; ok {
		return tok, nil
	}

	payload := s
	if w.compress {
		payload = compressBlock(s)
	}
	offset, err := w.store.Append(lenPrefixed(payload))
	if err != nil {
		return 0, errcode.NewFileOpen("dictionary store", err)
	}

	tok := w.nextToken
	w.nextToken++
	w.seen[key] = tok
	w.blocks = append(w.blocks, block{offset: offset, length: len(payload)})
	w.curExtentBytes += int64(len(payload))
	if w.curExtentBytes >= w.extentSize {
		w.seen = make(map[string]uint64)
		w.curExtentBytes = 0
	}
	return tok, nil
}

// NullToken returns the fixed null token without touching the store.
func (w *Writer) NullToken() uint64 { return coltype.DictNullToken }

func lenPrefixed(b []byte) []byte {
	out := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(out, uint32(len(b)))
	copy(out[4:], b)
	return out
}

func compressBlock(s []byte) []byte {
	dst := make([]byte, lz4.CompressBlockBound(len(s)))
	var c lz4.Compressor
	n, err := c.CompressBlock(s, dst)
	if err != nil || n == 0 {
		return s
	}
	return dst[:n]
}

// FlushBlocks returns every block location written since the last call
// and clears the list, for the caller to fold into dictFlushBlocks
// (spec §4.1/§4.5: "Records every dictionary block written at extent
// HWM so the caller can invalidate those blocks in the upstream cache").
func (w *Writer) FlushBlocks() []uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]uint64, len(w.blocks))
	for i, b := range w.blocks {
		out[i] = uint64(b.offset)
	}
	w.blocks = w.blocks[:0]
	return out
}

// Close syncs the backing store.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Sync()
}
