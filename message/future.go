package message

import (
	"context"
	"sync"
)

// ChanFuture is a minimal blocking Future: Wait blocks until the sink
// resolves it, then returns the decoded value/error exactly once.
// Grounded on the teacher's redis.ChanFuture / redis.Sync machinery,
// generalized to the Sink model above (Resolve(value, err) instead of
// Resolve(res interface{}, n uint64)).
type ChanFuture struct {
	value interface{}
	err   error
	done  chan struct{}
	once  sync.Once
}

// NewChanFuture returns a fresh, unresolved ChanFuture.
func NewChanFuture() *ChanFuture {
	return &ChanFuture{done: make(chan struct{})}
}

// Resolve implements Future. Only the first call has any effect.
func (f *ChanFuture) Resolve(value interface{}, err error) {
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
	})
}

// Done returns a channel closed once Resolve has run.
func (f *ChanFuture) Done() <-chan struct{} { return f.done }

// Wait blocks for resolution and returns the decoded value and error.
func (f *ChanFuture) Wait() (interface{}, error) {
	<-f.done
	return f.value, f.err
}

// CtxFuture is a ChanFuture that also races against a context.Context, for
// callers that want "give up waiting" without touching the underlying
// Message (which, once sent, cannot be cancelled — spec §5).
type CtxFuture struct {
	ChanFuture
	ctx context.Context
}

// NewCtxFuture returns a fresh, unresolved CtxFuture bound to ctx.
func NewCtxFuture(ctx context.Context) *CtxFuture {
	return &CtxFuture{ChanFuture: *NewChanFuture(), ctx: ctx}
}

// Wait blocks until either the sink resolves or ctx is done, whichever
// comes first. A late resolution after ctx wins is still recorded (so the
// Message's single Complete call never panics on a nil sink) but discarded
// by the caller.
func (f *CtxFuture) Wait() (interface{}, error) {
	select {
	case <-f.ctx.Done():
		return nil, f.ctx.Err()
	case <-f.done:
		return f.value, f.err
	}
}

// BatchFuture fans N independent resolutions into one completion signal,
// for callers awaiting a fixed-size batch of Messages together. Grounded
// on the teacher's redis.syncBatch.
type BatchFuture struct {
	values []interface{}
	errs   []error
	wg     sync.WaitGroup
}

// NewBatchFuture returns a BatchFuture sized for n Messages.
func NewBatchFuture(n int) *BatchFuture {
	b := &BatchFuture{values: make([]interface{}, n), errs: make([]error, n)}
	b.wg.Add(n)
	return b
}

// Slot returns the Future to attach to the i-th Message's sink.
func (b *BatchFuture) Slot(i int) Future { return batchSlot{b, i} }

// Wait blocks until every slot has resolved.
func (b *BatchFuture) Wait() ([]interface{}, []error) {
	b.wg.Wait()
	return b.values, b.errs
}

type batchSlot struct {
	b *BatchFuture
	i int
}

func (s batchSlot) Resolve(value interface{}, err error) {
	s.b.values[s.i], s.b.errs[s.i] = value, err
	s.b.wg.Done()
}
