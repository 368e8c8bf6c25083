package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTracker_NotifiesOnChangeOnly(t *testing.T) {
	tr := newStatusTracker()
	var seen []Status
	cancel := tr.subscribe(func(s Status) { seen = append(seen, s) })

	assert.True(t, tr.set(StatusConnecting))
	assert.False(t, tr.set(StatusConnecting))
	assert.True(t, tr.set(StatusOnline))

	cancel()
	tr.set(StatusReconnecting)

	assert.Equal(t, []Status{StatusConnecting, StatusOnline}, seen)
	assert.Equal(t, StatusReconnecting, tr.get())
}

func TestStatusTracker_WaitOnline(t *testing.T) {
	tr := newStatusTracker()
	tr.set(StatusReconnecting)

	done := make(chan error, 1)
	go func() { done <- tr.waitOnline(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	tr.set(StatusOnline)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waitOnline did not return")
	}
}

func TestStatusTracker_WaitOnlineClosed(t *testing.T) {
	tr := newStatusTracker()
	tr.set(StatusClosed)
	assert.ErrorIs(t, tr.waitOnline(context.Background()), ErrClosed)
}

func TestStatusTracker_WaitOnlineContext(t *testing.T) {
	tr := newStatusTracker()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.waitOnline(ctx), context.DeadlineExceeded)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "online", StatusOnline.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "status(42)", Status(42).String())
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second}
	assert.Equal(t, 100*time.Millisecond, b.Delay(1))
	assert.Equal(t, 200*time.Millisecond, b.Delay(2))
	assert.Equal(t, 800*time.Millisecond, b.Delay(4))
	assert.Equal(t, time.Second, b.Delay(5))
	assert.Equal(t, time.Second, b.Delay(50))

	assert.Equal(t, DefaultInitialDelay, Backoff{}.Delay(1))
}

func TestErrors(t *testing.T) {
	err := &InitError{Code: ErrCodeHostUnavailable, Message: "x", Err: ErrHostUnavailable}
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrHostUnavailable))
	assert.False(t, IsFatal(ErrOffline))

	require.True(t, IsConnectivity(ErrOffline))
	assert.True(t, IsConnectivity(errors.Join(errors.New("ctx"), ErrConnectionLost)))
	assert.False(t, IsConnectivity(ErrClosed))
}
