package audit

// Set is an unordered collection of enabled audits. Sets are values: Enable
// and Disable return a new Set and never modify the receiver.
//
// A Set never contains All.
type Set struct {
	members map[Audit]struct{}
}

// NewSet returns the default selection: every concrete audit.
func NewSet() Set {
	s := Set{members: make(map[Audit]struct{}, int(All))}
	for _, a := range Concrete() {
		s.members[a] = struct{}{}
	}
	return s
}

func emptySet() Set {
	return Set{members: make(map[Audit]struct{})}
}

func (s Set) clone() Set {
	c := Set{members: make(map[Audit]struct{}, len(s.members))}
	for a := range s.members {
		c.members[a] = struct{}{}
	}
	return c
}

// Disable removes audits from the set. If audits contains All the result is
// empty regardless of the other entries. Removing an audit that is not a
// member is a no-op. A nil slice returns the set unchanged.
func (s Set) Disable(audits []Audit) Set {
	if audits == nil {
		return s
	}
	if contains(audits, All) {
		return emptySet()
	}
	out := s.clone()
	for _, a := range audits {
		delete(out.members, a)
	}
	return out
}

// Enable adds audits to the set. If audits contains All the result is the
// full default set, discarding any earlier Disable. A nil slice returns the
// set unchanged.
func (s Set) Enable(audits []Audit) Set {
	if audits == nil {
		return s
	}
	if contains(audits, All) {
		return NewSet()
	}
	out := s.clone()
	for _, a := range audits {
		out.members[a] = struct{}{}
	}
	return out
}

// Enabled returns the members of the set. Callers must not depend on the
// order of the returned slice.
func (s Set) Enabled() []Audit {
	out := make([]Audit, 0, len(s.members))
	for _, a := range Concrete() {
		if _, ok := s.members[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Has reports whether a is enabled.
func (s Set) Has(a Audit) bool {
	_, ok := s.members[a]
	return ok
}

// Len returns the number of enabled audits.
func (s Set) Len() int { return len(s.members) }

func contains(audits []Audit, target Audit) bool {
	for _, a := range audits {
		if a == target {
			return true
		}
	}
	return false
}
