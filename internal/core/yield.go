package core

import (
	"context"
	"runtime"
)

// Yielder is called between chunks of rows during import and export so
// long-running work gives way to other goroutines and notices cancellation.
type Yielder interface {
	Yield(ctx context.Context) error
}

// YieldFunc adapts a function to the Yielder interface.
type YieldFunc func(ctx context.Context) error

// Yield implements Yielder.
func (f YieldFunc) Yield(ctx context.Context) error {
	return f(ctx)
}

// GoschedYielder yields the processor and reports context cancellation.
var GoschedYielder Yielder = YieldFunc(func(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
})

// NoopYielder only reports context cancellation.
var NoopYielder Yielder = YieldFunc(func(ctx context.Context) error {
	return ctx.Err()
})
