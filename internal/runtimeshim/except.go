package runtimeshim

// ThrownException is the payload an hc_throw_i64 call propagates as a Go
// panic. internal/backend's interpreter recovers it at the call site
// that pushed the matching try frame, then resumes execution in the
// catch body the way emitTryCatch's branch-on-discriminant shape
// expects — the interpreter-level stand-in for longjmp unwinding back
// to the matching setjmp.
type ThrownException struct {
	Payload int64
}

func (e *ThrownException) Error() string {
	return "uncaught HolyC exception"
}

// TryPush is hc_try_push: record that a try frame is active. The real
// setjmp captured by hc_try_begin has no equivalent register state here
// - internal/backend's interpreter itself supplies the "where do we
// resume" behavior via Go's own call stack and recover, so this just
// does the frame bookkeeping hc_try_push already separated from setjmp.
func (r *Runtime) TryPush(frameAddr int64) {
	r.tryStack = append(r.tryStack, frameAddr)
}

// TryPop is hc_try_pop: remove frameAddr from the stack, wherever it is
// (mirrors the original's linear scan rather than assuming LIFO order,
// since a nested try can still be live when an outer one pops).
func (r *Runtime) TryPop(frameAddr int64) {
	for i := len(r.tryStack) - 1; i >= 0; i-- {
		if r.tryStack[i] == frameAddr {
			r.tryStack = append(r.tryStack[:i], r.tryStack[i+1:]...)
			return
		}
	}
}

// Throw is hc_throw_i64: record the payload, pop the innermost frame if
// one exists, and panic so the interpreter unwinds to it. With no live
// frame this still panics - the interpreter's top-level driver recovers
// it there and reports the same "uncaught HolyC exception" fatal error
// std::abort() would have produced.
func (r *Runtime) Throw(payload int64) {
	r.exceptionPayload = payload
	r.exceptionActive = len(r.tryStack) > 0

	if len(r.tryStack) > 0 {
		r.tryStack = r.tryStack[:len(r.tryStack)-1]
	}

	panic(&ThrownException{Payload: payload})
}

// ExceptionPayload is hc_exception_payload.
func (r *Runtime) ExceptionPayload() int64 { return r.exceptionPayload }

// ExceptionActive is hc_exception_active.
func (r *Runtime) ExceptionActive() int64 {
	if len(r.tryStack) > 0 {
		return 1
	}

	return 0
}

// TryDepth is hc_try_depth.
func (r *Runtime) TryDepth() int64 { return int64(len(r.tryStack)) }
