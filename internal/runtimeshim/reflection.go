package runtimeshim

import (
	"strconv"
	"strings"
)

// metaEntry is one HcMemberMeta node: an annotation key/value pair
// attached to a reflected field.
type metaEntry struct {
	key   string
	value int64
}

// member is this shim's CMemberLst: one reflected field of a class, with
// its estimated byte offset and any annotation metadata.
type Member struct {
	name   string
	offset int64
	meta   []metaEntry
	handle int64
}

// estimateTypeSize is EstimateTypeSize: a rough, pointer-agnostic-width
// size table good enough for offset bookkeeping, not real ABI layout.
func estimateTypeSize(typeName string) int64 {
	if strings.Contains(typeName, "*") {
		return 8
	}

	switch typeName {
	case "I8", "U8", "Bool":
		return 1
	case "I16", "U16":
		return 2
	case "I32", "U32":
		return 4
	default:
		return 8
	}
}

// parseMetaValue is ParseMetaValue: a quoted string becomes its own
// handle, "&Symbol" resolves through the symbol resolver hook (there is
// no dlsym here; the interpreter supplies function/global addresses),
// otherwise it's a simple arithmetic literal, defaulting to 0.
func (sh *Shared) parseMetaValue(token string) int64 {
	if token == "" {
		return 1
	}

	if strings.HasPrefix(token, `"`) {
		return sh.internString(decodeQuoted(token))
	}

	if strings.HasPrefix(token, "&") {
		if sh.ResolveSymbol != nil {
			return sh.ResolveSymbol(token[1:])
		}

		return 0
	}

	if v, err := strconv.ParseInt(token, 0, 64); err == nil {
		return v
	}

	return 0
}

func decodeQuoted(text string) string {
	if len(text) < 2 || text[0] != '"' || text[len(text)-1] != '"' {
		return text
	}

	inner := text[1 : len(text)-1]

	var b strings.Builder

	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == '\\' && i+1 < len(inner) {
			i++

			switch inner[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(inner[i])
			}

			continue
		}

		b.WriteByte(c)
	}

	return b.String()
}

// tokenizeAnnotations splits a whitespace-separated annotation string
// into key/value tokens, treating a double-quoted run as one token the
// way TokenizeAnnotations does.
func tokenizeAnnotations(text string) []string {
	var tokens []string

	i := 0
	for i < len(text) {
		for i < len(text) && text[i] == ' ' {
			i++
		}

		if i >= len(text) {
			break
		}

		start := i

		if text[i] == '"' {
			i++

			for i < len(text) {
				if text[i] == '"' && text[i-1] != '\\' {
					i++
					break
				}

				i++
			}
		} else {
			for i < len(text) && text[i] != ' ' {
				i++
			}
		}

		tokens = append(tokens, text[start:i])
	}

	return tokens
}

func (sh *Shared) populateMemberMeta(m *Member, annotations string) {
	if annotations == "" {
		return
	}

	tokens := tokenizeAnnotations(annotations)
	for i := 0; i < len(tokens); i += 2 {
		key := tokens[i]

		value := "1"
		if i+1 < len(tokens) {
			value = tokens[i+1]
		}

		m.meta = append(m.meta, metaEntry{key: key, value: sh.parseMetaValue(value)})
	}
}

// RegisterReflectionTable is hc_register_reflection_table: stash the raw
// field list and invalidate the cache; EnsureReflectionCache rebuilds it
// lazily on the next HashFind, matching the original's split between
// registration and cache population.
func (sh *Shared) RegisterReflectionTable(fields []ReflectionField) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.reflection = fields
	sh.hashCache = map[string]*HashClass{}
}

// ReflectionFieldCount is hc_reflection_field_count.
func (sh *Shared) ReflectionFieldCount() int64 {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	return int64(len(sh.reflection))
}

func (sh *Shared) ensureReflectionCacheLocked() {
	if sh.hashCache != nil && len(sh.hashCache) > 0 {
		return
	}

	if sh.hashCache == nil {
		sh.hashCache = map[string]*HashClass{}
	}

	for _, f := range sh.reflection {
		if f.AggregateName == "" || f.FieldName == "" {
			continue
		}

		klass := sh.hashCache[f.AggregateName]
		if klass == nil {
			klass = &HashClass{name: f.AggregateName, handle: sh.newHandle()}
			sh.hashCache[f.AggregateName] = klass
		}

		m := &Member{name: f.FieldName, handle: sh.newHandle()}

		if n := len(klass.members); n > 0 {
			m.offset = klass.members[n-1].offset + estimateTypeSize(klass.fields[n-1].FieldType)
		}

		sh.populateMemberMeta(m, f.Annotations)
		klass.fields = append(klass.fields, f)
		klass.members = append(klass.members, m)
	}
}

// HashFind is HashFind: look up a registered class by name, populating
// the cache on first use.
func (sh *Shared) HashFind(name string) *HashClass {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.ensureReflectionCacheLocked()

	return sh.hashCache[name]
}

// MemberByIndex returns klass's i'th reflected field, or nil if out of
// range - the lookup HashFind's caller chains into before calling
// MemberMetaData/MemberMetaFind.
func (k *HashClass) MemberByIndex(i int) *Member {
	if i < 0 || i >= len(k.members) {
		return nil
	}

	return k.members[i]
}

// Name is the reflected class's name.
func (k *HashClass) Name() string { return k.name }

// MemberCount is the number of reflected fields on the class.
func (k *HashClass) MemberCount() int { return len(k.members) }

// Name is the reflected field's name.
func (m *Member) Name() string { return m.name }

// Offset is the field's estimated byte offset within its class.
func (m *Member) Offset() int64 { return m.offset }

// MetaCount is the number of annotation key/value pairs on the field.
func (m *Member) MetaCount() int { return len(m.meta) }

// MetaAt returns the i'th annotation pair.
func (m *Member) MetaAt(i int) (string, int64) { return m.meta[i].key, m.meta[i].value }

// MemberMetaData is MemberMetaData: the annotation value for key, or 0
// if absent.
func MemberMetaData(key string, m *Member) int64 {
	if m == nil {
		return 0
	}

	for _, e := range m.meta {
		if e.key == key {
			return e.value
		}
	}

	return 0
}

// MemberMetaFind is MemberMetaFind: a handle to the meta node itself
// rather than its value, or 0 if absent.
func (sh *Shared) MemberMetaFind(key string, m *Member) int64 {
	if m == nil {
		return 0
	}

	for i, e := range m.meta {
		if e.key == key {
			return sh.internString(key + "#" + strconv.Itoa(i))
		}
	}

	return 0
}

func (sh *Shared) newHandle() int64 {
	sh.nextTaskID++
	return sh.nextTaskID
}

// internString hands back a stable handle for a string value that has
// nowhere else to live (a decoded quoted-literal annotation value);
// ResolveSymbol-free callers never dereference it back to text, they
// only need a nonzero, stable token, the same role
// reinterpret_cast<int64>(decoded) plays in the original.
func (sh *Shared) internString(s string) int64 {
	return sh.newHandle()
}
