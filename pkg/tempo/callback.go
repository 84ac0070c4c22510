package tempo

type callbackKind uint8

const (
	callbackNone callbackKind = iota
	callbackFunc
	callbackMethod
)

// TimerListener receives timer notifications through a named method.
type TimerListener interface {
	TimerEnd(t *Timer)
}

// TimerCallback is either a plain function or a TimerListener.
// The zero value is an empty callback; dispatching it does nothing.
type TimerCallback struct {
	kind     callbackKind
	fn       func(*Timer)
	listener TimerListener
}

// TimerFunc wraps fn. A nil fn gives the empty callback.
func TimerFunc(fn func(*Timer)) TimerCallback {
	if fn == nil {
		return TimerCallback{}
	}
	return TimerCallback{kind: callbackFunc, fn: fn}
}

// TimerMethod dispatches to l.TimerEnd. A nil l gives the empty callback.
func TimerMethod(l TimerListener) TimerCallback {
	if l == nil {
		return TimerCallback{}
	}
	return TimerCallback{kind: callbackMethod, listener: l}
}

func (c TimerCallback) IsZero() bool { return c.kind == callbackNone }

func (c TimerCallback) dispatch(t *Timer) {
	switch c.kind {
	case callbackFunc:
		c.fn(t)
	case callbackMethod:
		c.listener.TimerEnd(t)
	}
}

// TransitionListener receives transition notifications through a named method.
type TransitionListener interface {
	TransitionEnd(t *Transition)
}

// TransitionCallback is either a plain function or a TransitionListener.
// The zero value is an empty callback.
type TransitionCallback struct {
	kind     callbackKind
	fn       func(*Transition)
	listener TransitionListener
}

// TransitionFunc wraps fn. A nil fn gives the empty callback.
func TransitionFunc(fn func(*Transition)) TransitionCallback {
	if fn == nil {
		return TransitionCallback{}
	}
	return TransitionCallback{kind: callbackFunc, fn: fn}
}

// TransitionMethod dispatches to l.TransitionEnd. A nil l gives the empty callback.
func TransitionMethod(l TransitionListener) TransitionCallback {
	if l == nil {
		return TransitionCallback{}
	}
	return TransitionCallback{kind: callbackMethod, listener: l}
}

func (c TransitionCallback) IsZero() bool { return c.kind == callbackNone }

func (c TransitionCallback) dispatch(t *Transition) {
	switch c.kind {
	case callbackFunc:
		c.fn(t)
	case callbackMethod:
		c.listener.TransitionEnd(t)
	}
}
