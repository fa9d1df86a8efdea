package runtime

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gotest.tools/v3/assert"
)

func TestDefaultBackOffSchedules(t *testing.T) {
	tests := []struct {
		name string
		b    backoff.BackOff
		want []time.Duration
	}{
		{
			name: "attach doubles from 2s",
			b:    defaultAttachBackOff(),
			want: []time.Duration{2 * time.Second, 4 * time.Second},
		},
		{
			name: "liveness from 4s capped at 10s",
			b:    defaultLivenessBackOff(),
			want: []time.Duration{4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.want {
				assert.Equal(t, tt.b.NextBackOff(), want, "wait %d", i+1)
			}
		})
	}
}

func TestNewUsesThreeAttachAttempts(t *testing.T) {
	r, err := New(testConfig(), newFakeEngine(), Options{SessionID: "abc"})
	assert.NilError(t, err)
	assert.Equal(t, r.attachTries, uint(3))
}
