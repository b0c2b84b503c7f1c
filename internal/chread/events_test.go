package chread

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestListEventsParams_Where(t *testing.T) {
	hook := "sql"
	action := "block"
	shadow := true
	start := time.Unix(1700000000, 0)

	tests := []struct {
		name     string
		params   ListEventsParams
		want     string
		wantArgs int
	}{
		{
			name:     "app only",
			params:   ListEventsParams{AppID: "app_1"},
			want:     "app_id = @app_id",
			wantArgs: 1,
		},
		{
			name:     "all filters",
			params:   ListEventsParams{AppID: "app_1", Hook: &hook, Action: &action, IsShadow: &shadow, StartTime: &start, EndTime: &start},
			want:     "app_id = @app_id AND hook = @hook AND action = @action AND is_shadow = @is_shadow AND timestamp >= @start_time AND timestamp <= @end_time",
			wantArgs: 6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args := tt.params.where()
			if got != tt.want {
				t.Errorf("where = %q, want %q", got, tt.want)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

type fakeScanner struct {
	err error
}

func (f fakeScanner) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	*dest[0].(*string) = "req-1"
	*dest[6].(*uint8) = 1
	*dest[12].(*string) = "\x01\xab"
	return nil
}

func TestScanEvent(t *testing.T) {
	e, err := scanEvent(fakeScanner{})
	if err != nil {
		t.Fatalf("scanEvent: %v", err)
	}
	if e.RequestID != "req-1" || !e.IsShadow {
		t.Errorf("unexpected row %+v", e)
	}
	if e.ParamsHash != "01ab" {
		t.Errorf("params_hash = %q, want hex", e.ParamsHash)
	}

	boom := errors.New("boom")
	if _, err := scanEvent(fakeScanner{err: boom}); !errors.Is(err, boom) {
		t.Errorf("expected scan error, got %v", err)
	}
}

func TestEventColumnsMatchScan(t *testing.T) {
	if n := len(strings.Split(eventColumns, ",")); n != 17 {
		t.Errorf("eventColumns has %d columns, scanEvent reads 17", n)
	}
}

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.5, 1.5},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
	}
	for _, tt := range tests {
		if got := safeFloat(tt.in); got != tt.want {
			t.Errorf("safeFloat(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
