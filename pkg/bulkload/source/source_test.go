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

package source

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/bulkimport/pkg/bulkload/rowbuf"
)

func newTestBuffer(rowsCap int) *rowbuf.Buffer {
	r := rowbuf.New(2, 1, rowsCap)
	return r.At(0)
}

func TestTextFillSplitsOnNewlines(t *testing.T) {
	s := NewText(strings.NewReader("a|1\nb|2\nc|3\n"), TextOptions{Delimiter: '|'})
	buf := newTestBuffer(2)
	buf.Rows = buf.Rows[:0:2]

	res, err := s.Fill(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsRead)
	require.False(t, res.EOF)
	require.Equal(t, []byte("a|1\n"), buf.Rows[0].Raw)
	require.Equal(t, []byte("b|2\n"), buf.Rows[1].Raw)
	require.EqualValues(t, 1, buf.Rows[0].RowNumber)
	require.EqualValues(t, 2, buf.Rows[1].RowNumber)
}

func TestTextFillReportsEOFOnLastPartialCall(t *testing.T) {
	s := NewText(strings.NewReader("only-one-row\n"), TextOptions{Delimiter: '|'})
	buf := newTestBuffer(4)
	buf.Rows = buf.Rows[:0:4]

	res, err := s.Fill(buf, 0)
	require.NoError(t, err)
	require.True(t, res.EOF)
	require.Equal(t, 1, res.RowsRead)
}

func TestTextFillWithoutTrailingNewlineStillReturnsLastRecord(t *testing.T) {
	s := NewText(strings.NewReader("no-newline-at-end"), TextOptions{Delimiter: '|'})
	buf := newTestBuffer(4)
	buf.Rows = buf.Rows[:0:4]

	res, err := s.Fill(buf, 0)
	require.NoError(t, err)
	require.True(t, res.EOF)
	require.Equal(t, 1, res.RowsRead)
	require.Equal(t, []byte("no-newline-at-end"), buf.Rows[0].Raw)
}

func TestTextFillKeepsEnclosedNewlineInsideOneRecord(t *testing.T) {
	s := NewText(strings.NewReader("\"line1\nline2\"|x\nnext\n"), TextOptions{Delimiter: '|', Enclosure: '"'})
	buf := newTestBuffer(4)
	buf.Rows = buf.Rows[:0:4]

	res, err := s.Fill(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsRead)
	require.Equal(t, []byte("\"line1\nline2\"|x\n"), buf.Rows[0].Raw)
	require.Equal(t, []byte("next\n"), buf.Rows[1].Raw)
}

func TestTextFillHonorsEscapedNewline(t *testing.T) {
	s := NewText(strings.NewReader("a\\\nb|1\nnext\n"), TextOptions{Delimiter: '|', Escape: '\\'})
	buf := newTestBuffer(4)
	buf.Rows = buf.Rows[:0:4]

	res, err := s.Fill(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsRead)
	require.Equal(t, []byte("a\\\nb|1\n"), buf.Rows[0].Raw)
}

func TestTextFillStopsAtBufferCapacity(t *testing.T) {
	s := NewText(strings.NewReader("a\nb\nc\n"), TextOptions{Delimiter: '|'})
	buf := newTestBuffer(2)
	buf.Rows = buf.Rows[:0:2]

	res, err := s.Fill(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsRead)
	require.False(t, res.EOF, "capacity was reached before EOF")
}

func TestBinaryFillReadsFixedLengthRecords(t *testing.T) {
	s := NewBinary(bytes.NewReader([]byte("AAAABBBBCCCC")), BinaryOptions{RecordLength: 4})
	buf := newTestBuffer(4)
	buf.Rows = buf.Rows[:0:4]

	res, err := s.Fill(buf, 0)
	require.NoError(t, err)
	require.True(t, res.EOF)
	require.Equal(t, 3, res.RowsRead)
	require.Equal(t, []byte("AAAA"), buf.Rows[0].Raw)
	require.Equal(t, []byte("CCCC"), buf.Rows[2].Raw)
}

func TestBinaryFillFlagsTrailingPartialRecordAsError(t *testing.T) {
	s := NewBinary(bytes.NewReader([]byte("AAAABB")), BinaryOptions{RecordLength: 4})
	buf := newTestBuffer(4)
	buf.Rows = buf.Rows[:0:4]

	res, err := s.Fill(buf, 0)
	require.NoError(t, err)
	require.True(t, res.EOF)
	require.Equal(t, 1, res.RowsRead)
	require.True(t, buf.ErrorRows.Contains(1), "the partial trailing record at row index 1 is flagged")
}
