package jembatan

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecutionTimeListenerReportsElapsed(t *testing.T) {
	var got []ExecutionTime
	l := NewExecutionTimeListener(func(et ExecutionTime) {
		got = append(got, et)
	})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	req, err := NewGetRequest("api/cars", WithParameter("make", "volvo"))
	require.NoError(t, err)

	l.OnExecuting(context.Background(), req.Request)
	require.Equal(t, 1, l.Pending())
	now = now.Add(250 * time.Millisecond)
	l.OnExecuted(context.Background(), req.Request)

	require.Len(t, got, 1)
	require.Equal(t, req.Key(), got[0].Key)
	require.Equal(t, 250*time.Millisecond, got[0].Elapsed)
	require.Zero(t, l.Pending())
}

func TestExecutionTimeListenerDiscardsOnError(t *testing.T) {
	called := false
	l := NewExecutionTimeListener(func(ExecutionTime) { called = true })

	req, err := NewRequest(MethodPost, "api")
	require.NoError(t, err)

	l.OnExecuting(context.Background(), req)
	l.OnError(context.Background(), req, errors.New("boom"))
	l.OnExecuted(context.Background(), req)

	require.False(t, called)
	require.Zero(t, l.Pending())
}

func TestExecutionTimeListenerConcurrentIdenticalRequests(t *testing.T) {
	var mu sync.Mutex
	keys := map[RequestKey]bool{}
	l := NewExecutionTimeListener(func(et ExecutionTime) {
		mu.Lock()
		keys[et.Key] = true
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := NewGetRequest("api/same", WithParameter("q", "1"))
			if err != nil {
				t.Error(err)
				return
			}
			l.OnExecuting(context.Background(), req.Request)
			l.OnExecuted(context.Background(), req.Request)
		}()
	}
	wg.Wait()

	require.Len(t, keys, 20)
	require.Zero(t, l.Pending())
}

func TestListenerFuncsNilSafe(t *testing.T) {
	l := &ListenerFuncs{}
	req, err := NewRequest(MethodGet, "api")
	require.NoError(t, err)

	l.OnExecuting(context.Background(), req)
	l.OnExecuted(context.Background(), req)
	l.OnError(context.Background(), req, errors.New("x"))
}

func TestLogListenerWritesEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogListener(newBufferLogger(&buf))
	req, err := NewRequest(MethodGet, "api/log")
	require.NoError(t, err)

	l.OnExecuting(context.Background(), req)
	l.OnError(context.Background(), req, errors.New("connection refused"))

	out := buf.String()
	require.Contains(t, out, "Executing request")
	require.Contains(t, out, "Request failed")
	require.Contains(t, out, "connection refused")
	require.Contains(t, out, req.ID().String())
}
