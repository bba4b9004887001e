package runtimeshim

// Malloc is hc_malloc.
func (r *Runtime) Malloc(size int64) int64 {
	if size <= 0 {
		return 0
	}

	return r.Mem.Alloc(size)
}

// Free is hc_free.
func (r *Runtime) Free(addr int64) {
	if addr == 0 {
		return
	}

	r.Mem.Free(addr)
}

// Memcpy is hc_memcpy.
func (r *Runtime) Memcpy(dst, src, size int64) int64 {
	if size <= 0 {
		return dst
	}

	r.Mem.WriteBytes(dst, r.Mem.ReadBytes(src, size))

	return dst
}

// Memset is hc_memset.
func (r *Runtime) Memset(dst int64, value byte, size int64) int64 {
	if size <= 0 {
		return dst
	}

	buf := make([]byte, size)
	for i := range buf {
		buf[i] = value
	}

	r.Mem.WriteBytes(dst, buf)

	return dst
}
