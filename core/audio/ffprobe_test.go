package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeRunner(output string, runErr error) commandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		if runErr != nil {
			return nil, []byte("moov atom not found"), runErr
		}
		return []byte(output), nil, nil
	}
}

func newTestProbe(run commandRunner) *FFprobe {
	p := NewFFprobe("ffprobe", time.Second)
	p.run = run
	return p
}

func TestDurationFromFormat(t *testing.T) {
	p := newTestProbe(fakeRunner(`{"streams":[{"codec_type":"video"},{"codec_type":"audio"}],"format":{"duration":"215.481000"}}`, nil))

	d, err := p.Duration(context.Background(), "/tmp/staged.mp3")
	require.NoError(t, err)
	assert.InDelta(t, 215.481, d, 0.0001)
}

func TestDurationFromAudioStream(t *testing.T) {
	p := newTestProbe(fakeRunner(`{"streams":[{"codec_type":"audio","duration":"42.5"}],"format":{"duration":""}}`, nil))

	d, err := p.Duration(context.Background(), "/tmp/staged.opus")
	require.NoError(t, err)
	assert.Equal(t, 42.5, d)
}

func TestDurationFailures(t *testing.T) {
	tests := []struct {
		name   string
		output string
		runErr error
	}{
		{name: "ffprobe fails", runErr: errors.New("exit status 1")},
		{name: "garbage output", output: "not json"},
		{name: "no audio stream", output: `{"streams":[{"codec_type":"video"}],"format":{"duration":"3"}}`},
		{name: "zero duration", output: `{"streams":[{"codec_type":"audio"}],"format":{"duration":"0.000"}}`},
		{name: "missing duration", output: `{"streams":[{"codec_type":"audio"}],"format":{}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestProbe(fakeRunner(tc.output, tc.runErr)).Duration(context.Background(), "/tmp/bad.bin")
			assert.Error(t, err)
		})
	}
}
