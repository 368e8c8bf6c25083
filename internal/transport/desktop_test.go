package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowcanvas/internal/testutil"
	"github.com/roach88/flowcanvas/internal/wire"
)

func TestDesktop_NilHostIsFatal(t *testing.T) {
	d := NewDesktop(nil)
	err := d.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrHostUnavailable)
}

func TestDesktop_ListenFailureIsFatal(t *testing.T) {
	host := testutil.NewFakeHost(nil)
	host.FailListen(errors.New("no listener slot"))

	err := NewDesktop(host).Connect(context.Background())
	assert.True(t, IsFatal(err))
}

func TestDesktop_SendRoundTrip(t *testing.T) {
	host := testutil.NewFakeHost(func(req wire.Request) wire.Response {
		return wire.Response{ID: req.ID, Result: json.RawMessage(`{"n":1}`)}
	})
	d := NewDesktop(host)
	require.NoError(t, d.Connect(context.Background()))
	assert.Equal(t, StatusOnline, d.Status())

	var out struct{ N int }
	err := Call(context.Background(), d, wire.NewRequest("r1", wire.MethodGetWorkflow, "p", "w"), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, out.N)

	reqs := host.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []any{"p", "w"}, reqs[0].Params)
}

func TestDesktop_RPCErrorReturnedByCall(t *testing.T) {
	host := testutil.NewFakeHost(func(req wire.Request) wire.Response {
		return wire.Response{ID: req.ID, Error: &wire.RPCError{Code: -32000, Message: "nope"}}
	})
	d := NewDesktop(host)
	require.NoError(t, d.Connect(context.Background()))

	resp, err := d.Send(context.Background(), wire.NewRequest("r1", "Svc.op"))
	require.NoError(t, err, "error objects are not delivery failures")
	require.Error(t, resp.Err())

	err = Call(context.Background(), d, wire.NewRequest("r2", "Svc.op"), nil)
	var rpcErr *wire.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "nope", rpcErr.Message)
}

func TestDesktop_MismatchedResponseID(t *testing.T) {
	host := testutil.NewFakeHost(func(req wire.Request) wire.Response {
		return wire.Response{ID: "other"}
	})
	d := NewDesktop(host)
	require.NoError(t, d.Connect(context.Background()))

	_, err := d.Send(context.Background(), wire.NewRequest("r1", "Svc.op"))
	assert.Error(t, err)
}

func TestDesktop_SendBeforeConnect(t *testing.T) {
	d := NewDesktop(testutil.NewFakeHost(nil))
	_, err := d.Send(context.Background(), wire.NewRequest("r1", "Svc.op"))
	assert.ErrorIs(t, err, ErrOffline)
}

func TestDesktop_PushesAreQueuedInOrder(t *testing.T) {
	host := testutil.NewFakeHost(nil)
	d := NewDesktop(host)
	require.NoError(t, d.Connect(context.Background()))

	host.Push(`{"eventType":"a"}`)
	host.Push(7)
	host.Push(`{"eventType":"b"}`)

	q := d.Pushes()
	require.Equal(t, 3, q.Len())
	p1, _ := q.TryDequeue()
	p2, _ := q.TryDequeue()
	p3, _ := q.TryDequeue()
	assert.Equal(t, `{"eventType":"a"}`, p1.Msg)
	assert.Equal(t, 7, p2.Msg, "non-string messages are passed through for the dispatcher to reject")
	assert.Equal(t, `{"eventType":"b"}`, p3.Msg)
}

func TestDesktop_Close(t *testing.T) {
	host := testutil.NewFakeHost(nil)
	d := NewDesktop(host)
	require.NoError(t, d.Connect(context.Background()))
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	assert.Equal(t, StatusClosed, d.Status())
	host.Push("after close")
	assert.Equal(t, 0, d.Pushes().Len())

	_, err := d.Send(context.Background(), wire.NewRequest("r1", "Svc.op"))
	assert.ErrorIs(t, err, ErrClosed)
}
