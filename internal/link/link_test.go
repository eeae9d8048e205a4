package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestBackoff_Scenario4 matches spec §8 scenario 4: three successive
// failed opens produce next-attempt delays of 1000, 2000, 4000 ms.
func TestBackoff_Scenario4(t *testing.T) {
	b := newFixedExponential(-1)

	assert.Equal(t, 1000*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 2000*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 4000*time.Millisecond, b.NextBackOff())
}

func TestBackoff_CapsAt30Seconds(t *testing.T) {
	b := newFixedExponential(-1)
	var last time.Duration
	for i := 0; i < 10; i++ {
		last = b.NextBackOff()
	}
	assert.Equal(t, 30*time.Second, last)
}

func TestBackoff_StopsAtMaxRetries(t *testing.T) {
	b := newFixedExponential(2)
	assert.Equal(t, 1000*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 2000*time.Millisecond, b.NextBackOff())
	assert.Less(t, b.NextBackOff(), time.Duration(0))
}

func TestBackoff_ResetsAttemptCounter(t *testing.T) {
	b := newFixedExponential(-1)
	b.NextBackOff()
	b.NextBackOff()
	b.Reset()
	assert.Equal(t, 1000*time.Millisecond, b.NextBackOff())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "gaveUp", StateGaveUp.String())
	assert.Equal(t, "closed", StateClosed.String())
}
