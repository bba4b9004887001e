package runtimeshim

import "sync"

// job is this shim's CJob: a JobQue request running on its own
// goroutine, joined by JobResGet the way the original joins its
// pthread.
type job struct {
	done   chan struct{}
	once   sync.Once
	result int64
}

// CallStkGrow runs fn(a0) on the current goroutine. The original
// grows the native call stack before invoking a function compiled
// expecting deep recursion; goroutine stacks already grow on demand, so
// this is a direct call-through, not a no-op stub. a1 and a2 are
// accepted to match the call site but are not passed on: Caller invokes
// fn with a single argument, as the C runtime's CallStkGrow does.
func (sh *Shared) CallStkGrow(fn, a0, a1, a2 int64) int64 {
	if sh.Caller == nil || fn == 0 {
		return 0
	}

	return sh.Caller(fn, a0)
}

// Spawn is Spawn: launch fn(data) on a new goroutine and return a task
// handle immediately, mirroring pthread_detach's fire-and-forget
// semantics. task_name/target_cpu/parent/flags have no equivalent in a
// goroutine scheduler and are accepted only to match the call site's
// argument count.
func (sh *Shared) Spawn(fn, data int64) int64 {
	if fn == 0 {
		return 0
	}

	sh.markSpawnStart()

	go func() {
		defer sh.markSpawnDone()

		if sh.Caller != nil {
			sh.Caller(fn, data)
		}
	}()

	sh.mu.Lock()
	sh.nextTaskID++
	id := sh.nextTaskID
	sh.mu.Unlock()

	return id
}

func (sh *Shared) markSpawnStart() {
	sh.spawnMu.Lock()
	sh.spawnInFlight++
	sh.spawnMu.Unlock()
}

func (sh *Shared) markSpawnDone() {
	sh.spawnMu.Lock()
	sh.spawnInFlight--

	if sh.spawnInFlight == 0 {
		sh.spawnCond.Broadcast()
	}

	sh.spawnMu.Unlock()
}

// JobQue is JobQue: run fn(arg) on a joinable goroutine, returning a
// handle JobResGet later blocks on. cpu/flags are accepted for call-site
// parity only.
func (sh *Shared) JobQue(fn, arg int64) int64 {
	j := &job{done: make(chan struct{})}

	sh.nextJobID++
	id := sh.nextJobID
	sh.jobs.Store(id, j)

	go func() {
		if sh.Caller != nil {
			j.result = sh.Caller(fn, arg)
		}

		close(j.done)
	}()

	return id
}

// JobResGet is JobResGet: block until the job completes, then return its
// result and release the handle.
func (sh *Shared) JobResGet(handle int64) int64 {
	v, ok := sh.jobs.LoadAndDelete(handle)
	if !ok {
		return 0
	}

	j := v.(*job)
	<-j.done

	return j.result
}

// TaskSpawn is hc_task_spawn: run a shell command as a detached
// goroutine via CommandRunner, returning the same task handle shape
// Spawn does.
func (sh *Shared) TaskSpawn(command string) int64 {
	if command == "" {
		return -1
	}

	if sh.CommandRunner == nil {
		return -1
	}

	sh.markSpawnStart()

	go func() {
		defer sh.markSpawnDone()
		sh.CommandRunner(command)
	}()

	sh.mu.Lock()
	sh.nextTaskID++
	id := sh.nextTaskID
	sh.mu.Unlock()

	return id
}

// SpawnWaitAll is hc_spawn_wait_all: block until every in-flight
// Spawn/TaskSpawn goroutine has finished.
func (sh *Shared) SpawnWaitAll() {
	sh.spawnMu.Lock()
	for sh.spawnInFlight > 0 {
		sh.spawnCond.Wait()
	}
	sh.spawnMu.Unlock()
}
