package jembatan

import (
	"context"
	"sync"
	"time"
)

// Listener observes request execution. Listeners are notified in
// registration order and must not mutate the request.
type Listener interface {
	OnExecuting(ctx context.Context, req *Request)
	OnExecuted(ctx context.Context, req *Request)
	OnError(ctx context.Context, req *Request, err error)
}

// ListenerFuncs adapts optional callbacks to a Listener. Use it by pointer.
type ListenerFuncs struct {
	Executing func(ctx context.Context, req *Request)
	Executed  func(ctx context.Context, req *Request)
	Error     func(ctx context.Context, req *Request, err error)
}

func (l *ListenerFuncs) OnExecuting(ctx context.Context, req *Request) {
	if l.Executing != nil {
		l.Executing(ctx, req)
	}
}

func (l *ListenerFuncs) OnExecuted(ctx context.Context, req *Request) {
	if l.Executed != nil {
		l.Executed(ctx, req)
	}
}

func (l *ListenerFuncs) OnError(ctx context.Context, req *Request, err error) {
	if l.Error != nil {
		l.Error(ctx, req, err)
	}
}

// ExecutionTime reports how long one dispatch took.
type ExecutionTime struct {
	Key     RequestKey
	Elapsed time.Duration
}

// ExecutionTimeListener times each dispatch by its RequestKey and reports
// successful ones to a callback. Failed dispatches are discarded.
type ExecutionTimeListener struct {
	mu       sync.Mutex
	started  map[RequestKey]time.Time
	now      func() time.Time
	executed func(ExecutionTime)
}

// NewExecutionTimeListener creates a listener calling executed after each
// successful dispatch.
func NewExecutionTimeListener(executed func(ExecutionTime)) *ExecutionTimeListener {
	return &ExecutionTimeListener{
		started:  make(map[RequestKey]time.Time),
		now:      time.Now,
		executed: executed,
	}
}

func (l *ExecutionTimeListener) OnExecuting(_ context.Context, req *Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started[req.Key()] = l.now()
}

func (l *ExecutionTimeListener) OnExecuted(_ context.Context, req *Request) {
	key := req.Key()
	l.mu.Lock()
	start, ok := l.started[key]
	delete(l.started, key)
	l.mu.Unlock()

	if ok && l.executed != nil {
		l.executed(ExecutionTime{Key: key, Elapsed: l.now().Sub(start)})
	}
}

func (l *ExecutionTimeListener) OnError(_ context.Context, req *Request, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.started, req.Key())
}

// Pending returns the number of dispatches still being timed.
func (l *ExecutionTimeListener) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.started)
}

// LogListener writes request lifecycle events to a Logger.
type LogListener struct {
	logger Logger
}

// NewLogListener logs every dispatch through logger.
func NewLogListener(logger Logger) *LogListener {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &LogListener{logger: logger}
}

func (l *LogListener) OnExecuting(_ context.Context, req *Request) {
	l.logger.Info("Executing request", "method", req.Method().String(), "uri", req.FullURI(), "requestID", req.ID().String())
}

func (l *LogListener) OnExecuted(_ context.Context, req *Request) {
	l.logger.Info("Request executed", "method", req.Method().String(), "uri", req.FullURI(), "requestID", req.ID().String())
}

func (l *LogListener) OnError(_ context.Context, req *Request, err error) {
	l.logger.Error("Request failed", "method", req.Method().String(), "uri", req.FullURI(), "requestID", req.ID().String(), "error", err)
}
