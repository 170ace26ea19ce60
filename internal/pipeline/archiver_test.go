package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBlobArchiver struct {
	cutoff     time.Time
	archived   int64
	events     []domain.ErrorEvent
	execErr    error
	eventsErr  error
	eventCalls int
}

func (f *fakeBlobArchiver) ArchiveExecutions(_ context.Context, before time.Time) (int64, error) {
	f.cutoff = before
	return f.archived, f.execErr
}

func (f *fakeBlobArchiver) ArchiveErrorEvents(_ context.Context, events []domain.ErrorEvent) error {
	f.eventCalls++
	f.events = events
	return f.eventsErr
}

type fakeErrorSource struct {
	events []domain.ErrorEvent
}

func (f fakeErrorSource) RecentErrors(int) []domain.ErrorEvent {
	return f.events
}

func TestArchiverRun(t *testing.T) {
	blob := &fakeBlobArchiver{archived: 7}
	src := fakeErrorSource{events: []domain.ErrorEvent{
		{Kind: domain.ErrorKindInsufficientGas, Message: "insufficient gas"},
	}}
	a := NewArchiver(blob, src, 30, discardLogger())

	require.NoError(t, a.Run(context.Background()))

	// Cutoff sits retentionDays in the past.
	wantCutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, blob.cutoff, time.Minute)
	require.Len(t, blob.events, 1)
	assert.Equal(t, domain.ErrorKindInsufficientGas, blob.events[0].Kind)
}

func TestArchiverRun_NilErrorSource(t *testing.T) {
	blob := &fakeBlobArchiver{}
	a := NewArchiver(blob, nil, 30, discardLogger())

	require.NoError(t, a.Run(context.Background()))
	assert.Zero(t, blob.eventCalls)
}

func TestArchiverRun_ExecutionArchiveFailure(t *testing.T) {
	blob := &fakeBlobArchiver{execErr: errors.New("s3 unreachable")}
	a := NewArchiver(blob, fakeErrorSource{}, 30, discardLogger())

	err := a.Run(context.Background())
	require.Error(t, err)
	// Error snapshots are skipped when the execution sweep already failed.
	assert.Zero(t, blob.eventCalls)
}

func TestRunCron_InvalidExpression(t *testing.T) {
	a := NewArchiver(&fakeBlobArchiver{}, nil, 30, discardLogger())

	err := a.RunCron(context.Background(), "not a cron")
	assert.Error(t, err)
}

func TestParseCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "all wildcards", expr: "* * * * *"},
		{name: "monthly at 3am", expr: "0 3 1 * *"},
		{name: "comma list", expr: "0,30 * * * *"},
		{name: "too few fields", expr: "0 3 1 *", wantErr: true},
		{name: "too many fields", expr: "0 3 1 * * *", wantErr: true},
		{name: "non-numeric field", expr: "x 3 1 * *", wantErr: true},
		{name: "empty", expr: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCron(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2026, time.March, 15, 10, 30, 45, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{
			name: "every minute",
			expr: "* * * * *",
			want: time.Date(2026, time.March, 15, 10, 31, 0, 0, time.UTC),
		},
		{
			name: "top of hour",
			expr: "0 * * * *",
			want: time.Date(2026, time.March, 15, 11, 0, 0, 0, time.UTC),
		},
		{
			name: "midnight daily",
			expr: "0 0 * * *",
			want: time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly at 3am on the 1st",
			expr: "0 3 1 * *",
			want: time.Date(2026, time.April, 1, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "half-hour list",
			expr: "0,30 * * * *",
			want: time.Date(2026, time.March, 15, 11, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextCronTime(tt.expr, after)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextCronTime_InvalidExpression(t *testing.T) {
	_, err := nextCronTime("bogus", time.Now())
	assert.Error(t, err)
}

// A field that can never match (minute 99) exhausts the one-year search.
func TestNextCronTime_NoMatch(t *testing.T) {
	_, err := nextCronTime("99 * * * *", time.Now())
	assert.Error(t, err)
}
