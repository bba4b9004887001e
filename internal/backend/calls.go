package backend

import (
	"fmt"

	"github.com/holyc-lang/holycc/internal/ir"
	"github.com/holyc-lang/holycc/internal/runtimeshim"
)

// evalCall resolves a Call instruction's callee - direct by name,
// indirect through whatever function address fr's operand evaluates to
// - and either recurses into callFunction for a defined function or
// dispatches straight to callIntrinsic for one of the runtime ABI
// symbols ensureFunctionDecl/sema's builtin table declare as externs.
func (c *execCtx) evalCall(fn *ir.Function, in *ir.Call, fr *frame) (uint64, error) {
	args := make([]uint64, len(in.Args))
	for i, a := range in.Args {
		args[i] = c.eval(in.ArgTypes[i], a, fr)
	}

	var callee *ir.Function

	if in.Indirect {
		addr := int64(c.eval("ptr", in.Callee, fr))

		name, ok := c.s.addrFunc[addr]
		if !ok {
			return 0, fmt.Errorf("call through undefined function pointer 0x%x in %s", addr, fn.Name)
		}

		callee = c.s.mod.FunctionByName(name)
	} else {
		callee = c.s.mod.FunctionByName(in.Callee)
	}

	if callee == nil {
		return 0, fmt.Errorf("call to undefined function %q in %s", in.Callee, fn.Name)
	}

	if callee.IsDeclaration {
		return c.callIntrinsic(callee.Name, args)
	}

	return c.callFunction(callee, args)
}

// callIntrinsic answers one runtime ABI symbol directly against this
// goroutine's runtimeshim.Runtime (for the per-activation try/exception
// state) or the session's shared state (for reflection, jobs, and the
// byte arena every hc_* memory call ultimately touches).
func (c *execCtx) callIntrinsic(name string, args []uint64) (uint64, error) {
	arg := func(i int) int64 {
		if i < len(args) {
			return int64(args[i])
		}

		return 0
	}

	switch name {
	case "hc_print_fmt":
		format := c.s.arena.readCString(arg(0))

		rest := make([]int64, 0, len(args)-1)
		for i := 1; i < len(args); i++ {
			rest = append(rest, int64(args[i]))
		}

		c.rt.PrintFmt(format, rest, func(addr int64) string { return c.s.arena.readCString(addr) })

		return 0, nil

	case "hc_print_str":
		c.rt.PrintStr(c.s.arena.readCString(arg(0)))
		return 0, nil

	case "hc_put_char":
		c.rt.PutChar(arg(0))
		return 0, nil

	case "hc_try_push":
		c.rt.TryPush(arg(0))
		return 0, nil

	case "hc_try_pop":
		c.rt.TryPop(arg(0))
		return 0, nil

	case "hc_throw_i64":
		c.rt.Throw(arg(0))
		return 0, nil // unreachable: Throw always panics

	case "hc_exception_payload":
		return uint64(c.rt.ExceptionPayload()), nil

	case "hc_exception_active":
		return uint64(c.rt.ExceptionActive()), nil

	case "hc_try_depth":
		return uint64(c.rt.TryDepth()), nil

	case "hc_runtime_abi_version":
		return uint64(c.rt.AbiVersion()), nil

	case "hc_register_reflection_table":
		c.registerReflectionTable(arg(0), arg(1))
		return 0, nil

	case "hc_reflection_field_count":
		return uint64(c.s.shared.ReflectionFieldCount()), nil

	case "hc_malloc":
		return uint64(c.rt.Malloc(arg(0))), nil

	case "hc_free":
		c.rt.Free(arg(0))
		return 0, nil

	case "hc_memcpy":
		return uint64(c.rt.Memcpy(arg(0), arg(1), arg(2))), nil

	case "hc_memset":
		return uint64(c.rt.Memset(arg(0), byte(arg(1)), arg(2))), nil

	case "HashFind":
		// sema's bootstrap declares HashFind(name, table, kind); this
		// interpreter's reflection table is process-wide rather than
		// keyed by a second "table" argument, so only name is used.
		return uint64(c.s.hashFind(c.s.arena.readCString(arg(0)))), nil

	case "MemberMetaData":
		return uint64(c.s.memberMetaData(c.s.arena.readCString(arg(0)), arg(1))), nil

	case "MemberMetaFind":
		return uint64(c.s.memberMetaFind(c.s.arena.readCString(arg(0)), arg(1))), nil

	case "JobQue":
		return uint64(c.s.shared.JobQue(arg(0), arg(1))), nil

	case "JobResGet":
		return uint64(c.s.shared.JobResGet(arg(0))), nil

	case "CallStkGrow":
		return uint64(c.s.shared.CallStkGrow(arg(2), arg(3), arg(4), arg(5))), nil

	case "Spawn":
		return uint64(c.s.shared.Spawn(arg(0), arg(1))), nil

	case "hc_task_spawn":
		return uint64(c.s.shared.TaskSpawn(c.s.arena.readCString(arg(0)))), nil

	case "hc_spawn_wait_all":
		c.s.shared.SpawnWaitAll()
		return 0, nil

	case "PressAKey", "ClassRep", "ClassRepD":
		// No interactive console or class-dump surface in this
		// interpreter; both are side-effect-free stubs here.
		return 0, nil

	default:
		return 0, fmt.Errorf("unimplemented runtime intrinsic %q", name)
	}
}

// registerReflectionTable re-parses the hc_reflection_field array
// buildReflectionTable materialized into the arena (4 pointer fields
// per 32-byte entry: aggregate name, field name, field type,
// annotations, each a NUL-terminated string) back into
// runtimeshim.ReflectionField values.
func (c *execCtx) registerReflectionTable(tableAddr, count int64) {
	fields := make([]runtimeshim.ReflectionField, 0, count)

	for i := int64(0); i < count; i++ {
		entry := tableAddr + i*32

		fields = append(fields, runtimeshim.ReflectionField{
			AggregateName: c.s.arena.readCString(int64(c.s.arena.loadSized(entry+0, 8))),
			FieldName:     c.s.arena.readCString(int64(c.s.arena.loadSized(entry+8, 8))),
			FieldType:     c.s.arena.readCString(int64(c.s.arena.loadSized(entry+16, 8))),
			Annotations:   c.s.arena.readCString(int64(c.s.arena.loadSized(entry+24, 8))),
		})
	}

	c.s.shared.RegisterReflectionTable(fields)
}
