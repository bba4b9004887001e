package backend

import "github.com/holyc-lang/holycc/internal/runtimeshim"

// Byte layout of the opaque CHashClass/CMemberLst/HcMemberMeta structs
// from original_source/runtime/hc_runtime.cpp, materialized into the
// arena so HolyC code that walks ->next/->str by hand sees the same
// shape the real runtime would hand it, while MemberMetaData/
// MemberMetaFind themselves answer from the cached Go-side parse
// (session.memberAt) rather than re-walking the bytes they just wrote.
const (
	memberLstSize  = 32 // str, offset, next, meta
	memberMetaSize = 24 // key, value, next
	hashClassSize  = 40 // member_lst_and_root, class_name, next, tail, next_offset
)

// hashFind is HashFind: build (or fetch the cached) real-memory
// CHashClass for name and return its address, or 0 if unregistered.
func (s *session) hashFind(name string) int64 {
	if addr, ok := s.hashClassAddr[name]; ok {
		return addr
	}

	klass := s.shared.HashFind(name)
	if klass == nil {
		return 0
	}

	classAddr := s.materializeHashClass(klass)
	s.hashClassAddr[name] = classAddr

	return classAddr
}

func (s *session) materializeHashClass(klass *runtimeshim.HashClass) int64 {
	classAddr := s.arena.Alloc(hashClassSize)
	nameAddr := s.arena.writeString(klass.Name())

	var head, tail int64

	n := klass.MemberCount()
	for i := 0; i < n; i++ {
		m := klass.MemberByIndex(i)
		memberAddr := s.materializeMember(m)

		s.memberAt[memberAddr] = m

		if head == 0 {
			head = memberAddr
		} else {
			s.arena.storeSized(tail+16, 8, uint64(memberAddr)) // prev.next
		}

		tail = memberAddr
	}

	s.arena.storeSized(classAddr+0, 8, uint64(head))
	s.arena.storeSized(classAddr+8, 8, uint64(nameAddr))
	s.arena.storeSized(classAddr+16, 8, 0)
	s.arena.storeSized(classAddr+24, 8, uint64(tail))
	s.arena.storeSized(classAddr+32, 8, 0)

	return classAddr
}

func (s *session) materializeMember(m *runtimeshim.Member) int64 {
	addr := s.arena.Alloc(memberLstSize)
	strAddr := s.arena.writeString(m.Name())

	var metaHead int64

	n := m.MetaCount()
	for i := n - 1; i >= 0; i-- {
		key, value := m.MetaAt(i)

		metaAddr := s.arena.Alloc(memberMetaSize)
		keyAddr := s.arena.writeString(key)

		s.arena.storeSized(metaAddr+0, 8, uint64(keyAddr))
		s.arena.storeSized(metaAddr+8, 8, uint64(value))
		s.arena.storeSized(metaAddr+16, 8, uint64(metaHead))

		metaHead = metaAddr
	}

	s.arena.storeSized(addr+0, 8, uint64(strAddr))
	s.arena.storeSized(addr+8, 8, uint64(m.Offset()))
	s.arena.storeSized(addr+16, 8, 0)
	s.arena.storeSized(addr+24, 8, uint64(metaHead))

	return addr
}

// memberMetaData is MemberMetaData, answered from the cached parse
// rather than re-walking the meta bytes just written into the arena.
func (s *session) memberMetaData(key string, memberAddr int64) int64 {
	m, ok := s.memberAt[memberAddr]
	if !ok {
		return 0
	}

	return runtimeshim.MemberMetaData(key, m)
}

// memberMetaFind is MemberMetaFind: same lookup, but returns a handle to
// the meta node rather than its value - the arena address of the i'th
// meta entry, which already exists as real memory.
func (s *session) memberMetaFind(key string, memberAddr int64) int64 {
	m, ok := s.memberAt[memberAddr]
	if !ok {
		return 0
	}

	metaPtr := s.arena.loadSized(memberAddr+24, 8)
	for i := 0; i < m.MetaCount(); i++ {
		k, _ := m.MetaAt(i)
		if k == key {
			return int64(metaPtr)
		}

		metaPtr = s.arena.loadSized(int64(metaPtr)+16, 8)
	}

	return 0
}
