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

// Package telemetry implements ImportTeleStats (spec §6): start,
// progress, termination and summary events emitted around one job.
package telemetry

import "go.uber.org/zap"

// EventKind is one of the four ImportTeleStats event kinds.
type EventKind string

const (
	Start    EventKind = "IT_START"
	Progress EventKind = "IT_PROGRESS"
	Term     EventKind = "IT_TERM"
	Summary  EventKind = "IT_SUMMARY"
)

// Event is one ImportTeleStats record: job and import UUIDs, table
// list, rows so far, and schema, system and module names. It has no
// timestamp field, and emitted events carry no times.
type Event struct {
	Kind       EventKind
	JobUUID    string
	ImportUUID string
	TableList  []string
	RowsSoFar  uint64
	SchemaName string
	SystemName string
	ModuleName string
}

// Emitter publishes Events by logging each one at debug level through
// its zap.Logger; it does not forward events to any other telemetry
// pipeline.
type Emitter struct {
	log *zap.Logger

	progressBoundary uint64 // next 10^6 multiple that should trigger IT_PROGRESS
}

// New builds an Emitter logging through log.
func New(log *zap.Logger) *Emitter {
	return &Emitter{log: log, progressBoundary: 1_000_000}
}

func (e *Emitter) emit(ev Event) {
	e.log.Debug("import telemetry event",
		zap.String("kind", string(ev.Kind)),
		zap.String("job_uuid", ev.JobUUID),
		zap.String("import_uuid", ev.ImportUUID),
		zap.Strings("table_list", ev.TableList),
		zap.Uint64("rows_so_far", ev.RowsSoFar),
		zap.String("schema_name", ev.SchemaName),
		zap.String("system_name", ev.SystemName),
		zap.String("module_name", ev.ModuleName),
	)
}

// Start emits IT_START once at job startup.
func (e *Emitter) Start(base Event) {
	base.Kind = Start
	e.emit(base)
}

// MaybeProgress emits IT_PROGRESS each time rowsSoFar crosses a new 10^6
// boundary, per spec §6 "emitted each time the per-file row count
// crosses a new 10^6 boundary".
func (e *Emitter) MaybeProgress(base Event, rowsSoFar uint64) {
	if rowsSoFar < e.progressBoundary {
		return
	}
	for rowsSoFar >= e.progressBoundary {
		e.progressBoundary += 1_000_000
	}
	base.Kind = Progress
	base.RowsSoFar = rowsSoFar
	e.emit(base)
}

// Term emits IT_TERM on failure.
func (e *Emitter) Term(base Event) {
	base.Kind = Term
	e.emit(base)
}

// Summary emits IT_SUMMARY on success.
func (e *Emitter) Summary(base Event) {
	base.Kind = Summary
	e.emit(base)
}
