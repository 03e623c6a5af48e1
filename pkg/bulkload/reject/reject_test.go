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

package reject

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRejectRowCreatesBadAndErrFilesLazily(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "data.tbl")
	s := New(input, "", 42, 99)

	badPath, errPath := s.Paths()
	require.Empty(t, badPath)
	require.Empty(t, errPath)

	require.NoError(t, s.RejectRow(3, []byte("a|b|c"), "bad numeric literal"))

	badPath, errPath = s.Paths()
	require.NotEmpty(t, badPath)
	require.NotEmpty(t, errPath)
	require.NoError(t, s.Close())

	badContent, err := os.ReadFile(badPath)
	require.NoError(t, err)
	require.Equal(t, "a|b|c\n", string(badContent))

	errContent, err := os.ReadFile(errPath)
	require.NoError(t, err)
	require.Equal(t, "Line number 3;  Error: bad numeric literal\n", string(errContent))
}

func TestRejectRowDoesNotDoubleNewline(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "data.tbl"), "", 1, 1)
	require.NoError(t, s.RejectRow(1, []byte("already-terminated\n"), "x"))
	require.NoError(t, s.Close())

	badPath, _ := s.Paths()
	content, err := os.ReadFile(badPath)
	require.NoError(t, err)
	require.Equal(t, "already-terminated\n", string(content))
}

func TestCountsTrackBothFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "data.tbl"), "", 1, 1)
	require.NoError(t, s.RejectRow(1, []byte("x"), "bad"))
	require.NoError(t, s.RejectRow(2, []byte("y"), "bad"))
	data, errs := s.Counts()
	require.Equal(t, int64(2), data)
	require.Equal(t, int64(2), errs)
}

func TestCloseWithoutAnyRejectIsNoop(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "data.tbl"), "", 1, 1)
	require.NoError(t, s.Close())
	badPath, errPath := s.Paths()
	require.Empty(t, badPath)
	require.Empty(t, errPath)
}

func TestErrDirOverridesInputDirectory(t *testing.T) {
	inputDir := t.TempDir()
	errDir := t.TempDir()
	s := New(filepath.Join(inputDir, "data.tbl"), errDir, 5, 1)
	require.NoError(t, s.RejectRow(1, []byte("x"), "bad"))
	require.NoError(t, s.Close())

	badPath, _ := s.Paths()
	require.Equal(t, errDir, filepath.Dir(badPath))
}
