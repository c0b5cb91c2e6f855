package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAutoAdvance(t *testing.T) {
	c := AutoAdvance(epoch)

	<-c.After(time.Second)
	<-c.After(500 * time.Millisecond)

	assert.Equal(t, epoch.Add(1500*time.Millisecond), c.Now())
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, c.Waits())
}

func TestFake_Advance(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(time.Second)

	c.Advance(500 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case fired := <-ch:
		assert.Equal(t, epoch.Add(time.Second), fired)
	default:
		t.Fatal("did not fire")
	}
}

func TestSleep_Cancelled(t *testing.T) {
	c := Fake(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, c, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep_Elapsed(t *testing.T) {
	c := AutoAdvance(epoch)
	assert.NoError(t, Sleep(context.Background(), c, time.Second))
	assert.Equal(t, epoch.Add(time.Second), c.Now())
}
