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

// Command bulkimport wires one hard-coded table import job end to end,
// for smoke use against a directory of delimited text files. CLI
// argument parsing and job-description file formats stay out of scope
// (spec §1); this only exercises the package wiring a real driver
// would do after parsing its own job description.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/colstore/bulkimport/pkg/bulkload/brm"
	"github.com/colstore/bulkimport/pkg/bulkload/coltype"
	"github.com/colstore/bulkimport/pkg/bulkload/config"
	"github.com/colstore/bulkimport/pkg/bulkload/dict"
	"github.com/colstore/bulkimport/pkg/bulkload/source"
	"github.com/colstore/bulkimport/pkg/bulkload/table"
	"github.com/colstore/bulkimport/pkg/bulkload/tablelock"
	"github.com/colstore/bulkimport/pkg/bulkload/telemetry"
)

var (
	inputPath  = flag.String("input", "", "path to one delimited text file")
	outputDir  = flag.String("outdir", ".", "directory to write column files into")
	tableName  = flag.String("table", "smoke_table", "table name, for logging only")
	maxErrRows = flag.Uint64("max-errors", 100, "abort the job once more than this many rows are rejected")
	logFile    = flag.String("logfile", "", "rotate logs to this file instead of stderr")
)

func main() {
	flag.Parse()
	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: bulkimport -input=rows.tbl [-outdir=dir] [-table=name] [-max-errors=N] [-logfile=path]")
		os.Exit(1)
	}

	log, err := newLogger(*logFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if _, err := config.Load(); err != nil {
		log.Warn("storagemanager.cnf not found, continuing with defaults", zap.Error(err))
	}

	if err := run(log); err != nil {
		log.Fatal("bulkimport failed", zap.Error(err))
	}
}

// newLogger builds the process-wide logger. With no -logfile it behaves
// like a normal production zap logger on stderr; given a path it routes
// through a lumberjack.Logger so long-running jobs don't grow an
// unbounded log file across repeated runs.
func newLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewProduction()
	}

	ws := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	})
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, ws, zap.InfoLevel)
	return zap.New(core), nil
}

// columnSpec is the hard-coded schema of the smoke job: one INT id
// column and one CHAR(32) name column.
var columnSpecs = []coltype.Static{
	{ColName: "id", MapOID: 1001, WeType: coltype.WrInt, Width: 4, MinIntSat: -2147483648, MaxIntSat: 2147483647},
	{ColName: "name", MapOID: 1002, WeType: coltype.WrChar, Width: 32, DefinedWidth: 32},
}

func run(log *zap.Logger) error {
	brmClient := brm.NewInMemory([]int{1})
	tele := telemetry.New(log)

	// A local, single-node BRM has no network peer to arbitrate the
	// table lock against, so an advisory flock on outputDir stands in
	// for the cross-process half of the lock BRM would otherwise own.
	localLock, err := tablelock.AcquireLocal(*outputDir, 1)
	if err != nil {
		return fmt.Errorf("another local job already holds table 1: %w", err)
	}
	defer localLock.Release()

	rollbackPath := *outputDir + "/" + *tableName + ".rollback.json"
	ctl := table.New(1, *tableName, "bulkimport", 1, brmClient, rollbackPath, tele, log)

	if err := ctl.AcquireLock(brmClient, 1, 5*time.Second, false); err != nil {
		return err
	}

	for _, spec := range columnSpecs {
		ci := coltype.NewInfo(spec)

		f, err := os.OpenFile(*outputDir+"/"+spec.ColName+".col", os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()

		mgr, err := table.NewColumnBufferManager(ci, brmClient, f)
		if err != nil {
			return err
		}

		var dw *dict.Writer
		if ci.IsDict() {
			dw = dict.New(&fileStore{path: *outputDir + "/" + spec.ColName + ".dict"}, true)
		}

		ctl.AddColumn(ci, mgr, dw, ctl.ColumnCount())
	}

	if err := ctl.SaveRollbackSnapshot(); err != nil {
		return err
	}

	ctl.InitializeBuffers(4, 8192, table.TextOptions{
		Delimiter: '|',
		Enclosure: '"',
		Escape:    '\\',
	}, table.ModeText)

	ctl.RejectSink(*inputPath, *outputDir, 1, os.Getpid())

	in, err := os.Open(*inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	opener := &singleFileOpener{src: source.NewText(in, source.TextOptions{
		Delimiter: '|',
		Enclosure: '"',
		Escape:    '\\',
	})}

	ev := telemetry.Event{ImportUUID: *tableName, TableList: []string{*tableName}, ModuleName: "bulkimport"}
	tele.Start(ev)

	errCh := make(chan error, 1)
	go func() { errCh <- ctl.ReadTableData(opener, *maxErrRows) }()

	runErr := ctl.RunParsers(4, func() bool { return ctl.Status() == table.StatusErr })
	readErr := <-errCh
	if runErr != nil || readErr != nil {
		ctl.RequestShutdown()
		tele.Term(ev)
		if runErr != nil {
			return runErr
		}
		return readErr
	}

	processed, inserted := ctl.Summary()
	ev.RowsSoFar = processed
	tele.Summary(ev)
	log.Info("bulk import complete", zap.Uint64("rows_read", processed), zap.Uint64("rows_inserted", inserted))
	return nil
}

// singleFileOpener hands out exactly one already-open BatchSource, the
// simplest FileOpener a single-file smoke job needs.
type singleFileOpener struct {
	src    source.BatchSource
	opened bool
}

func (o *singleFileOpener) OpenNext() (source.BatchSource, bool, error) {
	if o.opened {
		return nil, false, nil
	}
	o.opened = true
	return o.src, true, nil
}

// fileStore is the on-disk dict.Store backing the name column's
// dictionary, opened lazily on first Append.
type fileStore struct {
	path string
	f    *os.File
}

func (s *fileStore) Append(buf []byte) (int64, error) {
	if s.f == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
		if err != nil {
			return 0, err
		}
		s.f = f
	}
	off, err := s.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.f.Write(buf); err != nil {
		return 0, err
	}
	return off, nil
}

func (s *fileStore) Sync() error {
	if s.f == nil {
		return nil
	}
	return s.f.Sync()
}

