package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"helios/pkg/errors"
)

type capturingTracker struct {
	captured []error
}

func (t *capturingTracker) CaptureError(_ context.Context, err error, _ map[string]string) error {
	t.captured = append(t.captured, err)
	return nil
}

func (t *capturingTracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (t *capturingTracker) Flush(context.Context) error { return nil }

func observedLogger(tracker errors.Tracker) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &Logger{
		SugaredLogger: zap.New(core).Sugar(),
		errorTracker:  tracker,
	}, logs
}

func TestInfowRecordsStructuredFields(t *testing.T) {
	log, logs := observedLogger(nil)

	log.Infow("Alert batch filtered", "received", 12, "accepted", 3)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Alert batch filtered", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.EqualValues(t, 12, fields["received"])
	assert.EqualValues(t, 3, fields["accepted"])
}

func TestErrorwRecordsFieldsAndReportsToTracker(t *testing.T) {
	tracker := &capturingTracker{}
	log, logs := observedLogger(tracker)

	log.Errorw("Order cancellation failed", "trigger", "kill switch")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Order cancellation failed", entries[0].Message)
	assert.Equal(t, "kill switch", entries[0].ContextMap()["trigger"])

	require.Len(t, tracker.captured, 1)
	assert.ErrorIs(t, tracker.captured[0], errors.ErrInternal)
}

func TestWithKeepsTrackerOnChildren(t *testing.T) {
	tracker := &capturingTracker{}
	log, _ := observedLogger(tracker)

	child := log.With("component", "risk_gate")
	child.Errorw("Account snapshot failed, failing closed", "error", "boom")

	assert.Len(t, tracker.captured, 1)
}
