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

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedEmitter() (*Emitter, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(zap.New(core)), logs
}

func TestStartEmitsITStart(t *testing.T) {
	e, logs := newObservedEmitter()
	e.Start(Event{ImportUUID: "job-1", TableList: []string{"t1"}})

	require.Equal(t, 1, logs.Len())
	require.Equal(t, string(Start), logs.All()[0].ContextMap()["kind"])
}

func TestTermEmitsITTerm(t *testing.T) {
	e, logs := newObservedEmitter()
	e.Term(Event{ImportUUID: "job-1"})
	require.Equal(t, string(Term), logs.All()[0].ContextMap()["kind"])
}

func TestSummaryEmitsITSummary(t *testing.T) {
	e, logs := newObservedEmitter()
	e.Summary(Event{ImportUUID: "job-1", RowsSoFar: 42})
	entry := logs.All()[0]
	require.Equal(t, string(Summary), entry.ContextMap()["kind"])
	require.EqualValues(t, 42, entry.ContextMap()["rows_so_far"])
}

func TestMaybeProgressDoesNotFireBelowFirstBoundary(t *testing.T) {
	e, logs := newObservedEmitter()
	e.MaybeProgress(Event{}, 999_999)
	require.Equal(t, 0, logs.Len())
}

func TestMaybeProgressFiresOnceTheBoundaryIsCrossed(t *testing.T) {
	e, logs := newObservedEmitter()
	e.MaybeProgress(Event{}, 1_000_000)
	require.Equal(t, 1, logs.Len())
	require.Equal(t, string(Progress), logs.All()[0].ContextMap()["kind"])
}

func TestMaybeProgressDoesNotRefireForTheSameBoundary(t *testing.T) {
	e, logs := newObservedEmitter()
	e.MaybeProgress(Event{}, 1_000_000)
	e.MaybeProgress(Event{}, 1_000_500)
	require.Equal(t, 1, logs.Len(), "still within the same 10^6 boundary")
}

func TestMaybeProgressFiresAgainOnTheNextBoundary(t *testing.T) {
	e, logs := newObservedEmitter()
	e.MaybeProgress(Event{}, 1_000_000)
	e.MaybeProgress(Event{}, 2_000_000)
	require.Equal(t, 2, logs.Len())
}

func TestMaybeProgressSkipsAheadWhenRowsJumpMultipleBoundaries(t *testing.T) {
	e, logs := newObservedEmitter()
	e.MaybeProgress(Event{}, 5_000_000)
	require.Equal(t, 1, logs.Len())
	e.MaybeProgress(Event{}, 5_500_000)
	require.Equal(t, 1, logs.Len(), "boundary jumped straight to 6_000_000, so this call is still below it")
}
