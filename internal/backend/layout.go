package backend

import (
	"strconv"
	"strings"

	"github.com/holyc-lang/holycc/internal/ir"
)

// layout is one named struct's field offsets and total size, computed
// once per module the way a real codegen's ABI layout pass would,
// rather than re-walking StructType.Fields on every GEP.
type layout struct {
	size    int64
	offsets []int64
	fields  []string
}

type layouts struct {
	m      *ir.Module
	byName map[string]*layout
}

func newLayouts(m *ir.Module) *layouts {
	return &layouts{m: m, byName: map[string]*layout{}}
}

func (l *layouts) of(name string) *layout {
	if lo, ok := l.byName[name]; ok {
		return lo
	}

	st := l.m.StructByName(name)
	if st == nil {
		return &layout{size: 8}
	}

	lo := &layout{fields: st.Fields}

	var offset int64

	for _, f := range st.Fields {
		sz := l.sizeOf(f)
		align := sz

		if r := offset % align; r != 0 {
			offset += align - r
		}

		lo.offsets = append(lo.offsets, offset)
		offset += sz
	}

	lo.size = offset
	if lo.size == 0 {
		lo.size = 8
	}

	l.byName[name] = lo

	return lo
}

// sizeOf is typeSize generalized to recurse into named aggregates via
// this module's own struct table, the byte-size counterpart to
// internal/ir's own coarse, ranking-only irTypeSize.
func (l *layouts) sizeOf(ty string) int64 {
	ty = strings.TrimSpace(ty)

	switch ty {
	case "i1", "i8":
		return 1
	case "i16":
		return 2
	case "i32":
		return 4
	case "i64", "double", "ptr":
		return 8
	}

	if strings.HasPrefix(ty, "%") {
		return l.of(ty[1:]).size
	}

	if strings.HasPrefix(ty, "[") {
		// "[N x T]" fixed array - the IR builder emits these for string
		// literal globals ([N x i8]) and the reflection table
		// ([N x %hc_reflection_field]).
		inner := strings.TrimSuffix(strings.TrimPrefix(ty, "["), "]")
		parts := strings.SplitN(inner, " x ", 2)

		if len(parts) == 2 {
			n, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
			if err == nil {
				return n * l.sizeOf(strings.TrimSpace(parts[1]))
			}
		}
	}

	return 8
}

// fieldOffset returns the byte offset and IR type of field index idx of
// the named struct.
func (l *layouts) fieldOffset(structName string, idx int) (int64, string) {
	lo := l.of(structName)
	if idx < 0 || idx >= len(lo.offsets) {
		return 0, "i64"
	}

	return lo.offsets[idx], lo.fields[idx]
}
