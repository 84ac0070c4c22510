package frameloop

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	logx "tempo/pkg/logx"
	"tempo/pkg/tempo"
)

// MinRepeatInterval keeps a repeating booking with a zero delay, or an
// animation of zero length that books its successor on completion, from
// spinning forever inside a single Advance.
const MinRepeatInterval = time.Millisecond

var ErrStopped = errors.New("frameloop: stopped")

var (
	_ tempo.Clock        = (*Loop)(nil)
	_ tempo.Delayer      = (*Loop)(nil)
	_ tempo.Interpolator = (*Loop)(nil)
)

// Ease maps linear progress in [0,1] to eased progress.
type Ease func(p float64) float64

func Linear(p float64) float64 { return p }

func EaseInOutQuad(p float64) float64 {
	if p < 0.5 {
		return 2 * p * p
	}
	return 1 - (-2*p+2)*(-2*p+2)/2
}

// Loop is a virtual-time event loop. Time only moves when Advance is called,
// which makes it usable both as a deterministic test clock and, behind a
// Runner, as a real-time host.
//
// Everything except Post, Do and Close must be called from the goroutine
// that calls Advance, including from inside callbacks.
type Loop struct {
	now    time.Duration
	seq    uint64
	nextID tempo.BookingID

	queue  bookingQueue
	live   map[tempo.BookingID]*booking
	tweens []*tween

	ease Ease
	log  logx.Logger
	warn logx.Logger

	mu      sync.Mutex
	posted  []func()
	closed  bool
	stopped chan struct{}
}

type Option func(*Loop)

// WithEase sets the easing used by Animate. The default is Linear.
func WithEase(e Ease) Option {
	return func(l *Loop) {
		if e != nil {
			l.ease = e
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(l *Loop) { l.log = log }
}

func New(opts ...Option) *Loop {
	l := &Loop{
		live:    make(map[tempo.BookingID]*booking),
		ease:    Linear,
		log:     logx.Nop(),
		stopped: make(chan struct{}),
	}
	for _, o := range opts {
		if o != nil {
			o(l)
		}
	}
	l.log = l.log.With(logx.String("comp", "frameloop"))
	l.warn = l.log.Throttled(5)
	return l
}

func (l *Loop) Now() time.Duration { return l.now }

// Pending reports the number of live bookings, animations included.
func (l *Loop) Pending() int { return len(l.live) }

// Schedule runs fn every delay, repeat times (0 = until cancelled).
func (l *Loop) Schedule(delay time.Duration, fn func(), repeat int) tempo.BookingID {
	if delay < 0 {
		delay = 0
	}
	if repeat < 0 {
		repeat = 0
	}
	return l.push(&booking{delay: delay, repeat: repeat, fn: fn}, after(l.now, delay))
}

// Animate moves every property in to from its current value on obj over d,
// then writes the exact targets and calls done. A zero-length animation
// jumps to its targets at once but completes MinRepeatInterval later.
func (l *Loop) Animate(obj tempo.Target, to tempo.Props, d time.Duration, done func()) tempo.BookingID {
	if d < 0 {
		d = 0
	}
	tw := &tween{
		obj:   obj,
		from:  make(tempo.Props, len(to)),
		to:    to.Clone(),
		start: l.now,
		dur:   d,
		ease:  l.ease,
	}
	for k := range tw.to {
		v, _ := obj.Get(k)
		tw.from[k] = v
	}
	b := &booking{repeat: 1}
	b.fn = func() {
		l.dropTween(b.id)
		tw.finish()
		if done != nil {
			done()
		}
	}
	id := l.push(b, after(l.now, max(d, MinRepeatInterval)))
	tw.id = id
	l.tweens = append(l.tweens, tw)
	if d == 0 {
		tw.at(l.now)
	}
	return id
}

// Cancel drops a booking or animation. Unknown, fired and already cancelled
// ids are ignored.
func (l *Loop) Cancel(id tempo.BookingID) {
	b, ok := l.live[id]
	if !ok {
		return
	}
	b.cancelled = true
	delete(l.live, id)
	l.dropTween(id)
}

func (l *Loop) push(b *booking, due time.Duration) tempo.BookingID {
	l.nextID++
	b.id = l.nextID
	b.due = due
	l.seq++
	b.seq = l.seq
	heap.Push(&l.queue, b)
	l.live[b.id] = b
	return b.id
}

// after returns t+d, saturating instead of wrapping into the past.
func after(t, d time.Duration) time.Duration {
	if d > math.MaxInt64-t {
		return math.MaxInt64
	}
	return t + d
}

func (l *Loop) dropTween(id tempo.BookingID) {
	l.tweens = slices.DeleteFunc(l.tweens, func(tw *tween) bool { return tw.id == id })
}

// Advance moves time forward by d, running every booking that falls due in
// time order. The clock reads each booking's due time while it runs.
func (l *Loop) Advance(d time.Duration) {
	l.drain()
	end := after(l.now, max(d, 0))
	for {
		b := l.peek()
		if b == nil || b.due > end {
			break
		}
		heap.Pop(&l.queue)
		l.now = b.due
		l.step()
		l.fire(b)
	}
	l.now = end
	l.step()
}

// RunFor advances in fixed steps until d has passed.
func (l *Loop) RunFor(d, step time.Duration) {
	if step <= 0 {
		l.Advance(d)
		return
	}
	for d > 0 {
		s := min(step, d)
		l.Advance(s)
		d -= s
	}
}

func (l *Loop) peek() *booking {
	for len(l.queue) > 0 {
		b := l.queue[0]
		if !b.cancelled {
			return b
		}
		heap.Pop(&l.queue)
	}
	return nil
}

func (l *Loop) fire(b *booking) {
	switch {
	case b.repeat == 1:
		delete(l.live, b.id)
	default:
		if b.repeat > 1 {
			b.repeat--
		}
		b.due = after(b.due, max(b.delay, MinRepeatInterval))
		l.seq++
		b.seq = l.seq
		heap.Push(&l.queue, b)
	}
	l.call(b.fn)
}

func (l *Loop) call(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.warn.Warn("callback panic",
				logx.Any("panic", r),
				logx.Duration("now", l.now),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	fn()
}

// step updates in-flight animations to the current time.
func (l *Loop) step() {
	for _, tw := range l.tweens {
		tw.at(l.now)
	}
}

// Post queues fn to run on the loop goroutine at the start of the next
// Advance. It is safe to call from any goroutine.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || fn == nil {
		return false
	}
	l.posted = append(l.posted, fn)
	return true
}

// Do runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	var perr error
	ok := l.Post(func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				perr = fmt.Errorf("frameloop: panic: %v", r)
			}
		}()
		fn()
	})
	if !ok {
		return ErrStopped
	}
	select {
	case <-done:
		return perr
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) drain() {
	l.mu.Lock()
	cmds := l.posted
	l.posted = nil
	l.mu.Unlock()
	for _, fn := range cmds {
		l.call(fn)
	}
}

// Close rejects further posts and releases Do callers still waiting.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.posted = nil
	close(l.stopped)
}

type booking struct {
	id        tempo.BookingID
	due       time.Duration
	seq       uint64
	delay     time.Duration
	repeat    int
	fn        func()
	cancelled bool
	index     int
}

// bookingQueue is a min-heap ordered by due time, then by scheduling order.
type bookingQueue []*booking

func (q bookingQueue) Len() int { return len(q) }

func (q bookingQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q bookingQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *bookingQueue) Push(x any) {
	b := x.(*booking)
	b.index = len(*q)
	*q = append(*q, b)
}

func (q *bookingQueue) Pop() any {
	old := *q
	n := len(old)
	b := old[n-1]
	old[n-1] = nil
	b.index = -1
	*q = old[:n-1]
	return b
}

type tween struct {
	id    tempo.BookingID
	obj   tempo.Target
	from  tempo.Props
	to    tempo.Props
	start time.Duration
	dur   time.Duration
	ease  Ease
}

func (tw *tween) at(now time.Duration) {
	p := 1.0
	if tw.dur > 0 {
		p = float64(now-tw.start) / float64(tw.dur)
	}
	p = min(max(p, 0), 1)
	e := tw.ease(p)
	for k, to := range tw.to {
		from := tw.from[k]
		tw.obj.Set(k, from+(to-from)*e)
	}
}

func (tw *tween) finish() {
	for k, v := range tw.to {
		tw.obj.Set(k, v)
	}
}
