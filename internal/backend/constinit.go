package backend

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// splitTopLevel splits a comma list at top-level commas only, treating
// any run inside {}/[]/"" as opaque - the same bracket-depth tracking a
// hand-rolled constant-expression parser needs for nested aggregate
// literals.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
		inStr bool
	)

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			if i == 0 || s[i-1] != '\\' {
				inStr = !inStr
			}
		case '{', '[':
			if !inStr {
				depth++
			}
		case '}', ']':
			if !inStr {
				depth--
			}
		case ',':
			if !inStr && depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}

	if start < len(s) {
		if tail := strings.TrimSpace(s[start:]); tail != "" {
			parts = append(parts, tail)
		}
	}

	return parts
}

func decodeQuotedBytes(text string) []byte {
	text = strings.TrimPrefix(text, "c")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, `"`)
	text = strings.TrimSuffix(text, `"`)

	var out []byte

	for i := 0; i < len(text); i++ {
		if text[i] == '\\' && i+2 < len(text) {
			if v, err := strconv.ParseUint(text[i+1:i+3], 16, 8); err == nil {
				out = append(out, byte(v))
				i += 2

				continue
			}
		}

		out = append(out, text[i])
	}

	return out
}

func putIntSized(buf []byte, v uint64) {
	switch len(buf) {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	default:
		binary.LittleEndian.PutUint64(buf, v)
	}
}

// materializeConst renders one global's textual initializer (the output
// of internal/ir's foldConstExpr, buildReflectionTable, or internString)
// into raw arena bytes. It only needs to understand the handful of
// constant shapes this IR builder ever emits, not the full LLVM constant
// grammar.
func (s *session) materializeConst(ty, text string) []byte {
	text = strings.TrimSpace(text)

	switch {
	case text == "zeroinitializer" || text == "" || text == "null":
		return make([]byte, s.layouts.sizeOf(ty))

	case strings.HasPrefix(text, "@"):
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(s.globalAddr[text[1:]]))

		return buf

	case strings.HasPrefix(text, "c\""):
		return decodeQuotedBytes(text)

	case strings.HasPrefix(text, "["):
		return s.materializeArrayConst(ty, text)

	case strings.HasPrefix(text, "{"):
		return s.materializeStructConst(ty, text)

	case ty == "double":
		f, _ := strconv.ParseFloat(text, 64)
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))

		return buf

	default:
		v, _ := strconv.ParseInt(text, 10, 64)
		buf := make([]byte, s.layouts.sizeOf(ty))
		putIntSized(buf, uint64(v))

		return buf
	}
}

// elemTypeOf pulls T out of an array type "[N x T]".
func elemTypeOf(arrTy string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(arrTy, "["), "]")

	parts := strings.SplitN(inner, " x ", 2)
	if len(parts) != 2 {
		return "i8"
	}

	return strings.TrimSpace(parts[1])
}

func (s *session) materializeArrayConst(arrTy, text string) []byte {
	elemTy := elemTypeOf(arrTy)

	inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(text), "["), "]")

	var out []byte

	for _, el := range splitTopLevel(inner) {
		out = append(out, s.materializeConst(elemTy, el)...)
	}

	return out
}

// materializeStructConst handles one "{ ty val, ty val, ... }" literal,
// using the struct's own field-type list (looked up by name) rather than
// re-parsing each entry's leading type token, since a nested aggregate
// value can itself contain spaces.
func (s *session) materializeStructConst(structTy, text string) []byte {
	name := strings.TrimPrefix(structTy, "%")
	lo := s.layouts.of(name)

	inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(text), "{"), "}")
	entries := splitTopLevel(inner)

	out := make([]byte, lo.size)

	for i, entry := range entries {
		if i >= len(lo.fields) {
			break
		}

		fieldTy := lo.fields[i]
		val := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(entry), fieldTy))

		bytes := s.materializeConst(fieldTy, val)
		copy(out[lo.offsets[i]:], bytes)
	}

	return out
}
