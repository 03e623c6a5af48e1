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

// Package reject implements RejectSink (spec §4.9): lazily-created
// per-job .bad/.err files collecting rejected input rows and the
// reasons they were rejected.
package reject

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/colstore/bulkimport/pkg/bulkload/errcode"
)

// Sink accumulates rejected rows for one input file within one job.
// Every method is safe for concurrent use; the table controller calls
// it under fErrorRptInfoMutex in the reviewed source, but since Sink
// owns its own lock a caller can also fan in from multiple readers
// without an external mutex.
type Sink struct {
	mu sync.Mutex

	inputPath string
	errDir    string
	jobID     int64
	pid       int

	badPath, errPath string
	badFile, errFile *os.File
	badWriter, errWriter *bufio.Writer

	rejectDataCount int64
	rejectErrCount  int64
}

// New builds a Sink for one input file. errDir, when non-empty,
// overrides the directory the .bad/.err files are created in; an empty
// errDir places them next to inputPath, matching the reviewed source's
// default.
func New(inputPath, errDir string, jobID int64, pid int) *Sink {
	return &Sink{inputPath: inputPath, errDir: errDir, jobID: jobID, pid: pid}
}

func (s *Sink) basePaths() (bad, err string) {
	dir := s.errDir
	if dir == "" {
		dir = filepath.Dir(s.inputPath)
	}
	base := fmt.Sprintf("%s.Job_%d_%d", filepath.Base(s.inputPath), s.jobID, s.pid)
	return filepath.Join(dir, base+".bad"), filepath.Join(dir, base+".err")
}

func (s *Sink) ensureOpenLocked() error {
	if s.badFile != nil {
		return nil
	}
	badPath, errPath := s.basePaths()

	bf, err := os.Create(badPath)
	if err != nil {
		return errcode.NewFileOpen(badPath, err)
	}
	ef, err := os.Create(errPath)
	if err != nil {
		bf.Close()
		return errcode.NewFileOpen(errPath, err)
	}

	absBad, err1 := filepath.Abs(badPath)
	absErr, err2 := filepath.Abs(errPath)
	if err1 != nil {
		absBad = badPath
	}
	if err2 != nil {
		absErr = errPath
	}

	s.badFile, s.errFile = bf, ef
	s.badWriter = bufio.NewWriter(bf)
	s.errWriter = bufio.NewWriter(ef)
	s.badPath, s.errPath = absBad, absErr
	return nil
}

// RejectRow appends rawRow as-is to the .bad file and reason (prefixed
// with the 1-based input line number) to the .err file, per spec §4.9's
// exact format: "Line number <rowNumber>;  Error: <reason>".
func (s *Sink) RejectRow(lineNumber int64, rawRow []byte, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}

	if _, err := s.badWriter.Write(rawRow); err != nil {
		return errcode.NewFileWrite(s.badPath, err)
	}
	if len(rawRow) == 0 || rawRow[len(rawRow)-1] != '\n' {
		s.badWriter.WriteByte('\n')
	}
	s.rejectDataCount++

	if _, err := fmt.Fprintf(s.errWriter, "Line number %d;  Error: %s\n", lineNumber, reason); err != nil {
		return errcode.NewFileWrite(s.errPath, err)
	}
	s.rejectErrCount++
	return nil
}

// Counts returns the running rejectDataCount/rejectErrCount.
func (s *Sink) Counts() (dataCount, errCount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejectDataCount, s.rejectErrCount
}

// Paths returns the absolute .bad/.err paths, valid once at least one
// row has been rejected; before that both are empty, per spec §4.9
// "lazily create".
func (s *Sink) Paths() (badPath, errPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badPath, s.errPath
}

// Close flushes both files if they were created and closes them.
// Closing a Sink that never rejected a row is a no-op, matching "lazily
// create" semantics — no empty .bad/.err litter a successful job.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.badFile == nil {
		return nil
	}
	var firstErr error
	if err := s.badWriter.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.errWriter.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.badFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.errFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return errcode.NewFileWrite(s.inputPath, firstErr)
	}
	return nil
}
