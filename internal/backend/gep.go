package backend

import "github.com/holyc-lang/holycc/internal/ir"

// evalGEP walks a getelementptr the same way the builder's two call
// shapes expect: a leading i64 element-index step scaled by ElemTy's
// size (array/pointer indexing), followed by zero or more i32 field
// indices that descend into ElemTy when it names a struct (field
// access). Both shapes share this one instruction, matching how
// internal/ir's own emitIndex/emitMember both call through GEP.
func (c *execCtx) evalGEP(g *ir.GEP, fr *frame) int64 {
	base := int64(c.eval("ptr", g.Ptr, fr))

	if len(g.Indices) == 0 {
		return base
	}

	idx0 := int64(c.eval(g.IndexTypes[0], g.Indices[0], fr))
	addr := base + idx0*c.s.layouts.sizeOf(g.ElemTy)

	curTy := g.ElemTy

	for i := 1; i < len(g.Indices); i++ {
		idx := int(c.eval(g.IndexTypes[i], g.Indices[i], fr))

		if curTy[0] != '%' {
			addr += int64(idx) * c.s.layouts.sizeOf(curTy)
			continue
		}

		off, fieldTy := c.s.layouts.fieldOffset(curTy[1:], idx)
		addr += off
		curTy = fieldTy
	}

	return addr
}
