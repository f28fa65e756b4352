package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LevelInfo, false},
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{"warning", LevelWarning, false},
		{"WARN", LevelWarning, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountersIgnoreSampling(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr); SetSampleRate(1) })

	SetSampleRate(1_000_000)
	before := ParseFailures.Load()
	warnings := TotalWarnings.Load()
	for i := 0; i < 10; i++ {
		WarnParseFailure("criterion rejected", "trial", "T-1")
	}
	assert.Equal(t, before+10, ParseFailures.Load())
	assert.Equal(t, warnings+10, TotalWarnings.Load())
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetSampleRate(1)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	WarnBlockedTrial("trial blocked", "trial", "T-9")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "trial blocked", rec["msg"])
	assert.Equal(t, "T-9", rec["trial"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := GetLevel()
	SetLevel(LevelError)
	t.Cleanup(func() { SetOutput(os.Stderr); SetLevel(prev) })

	Info("hidden")
	assert.Zero(t, buf.Len())
}
