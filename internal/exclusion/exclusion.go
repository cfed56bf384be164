// Package exclusion decides which classes, methods and fields a transform must
// leave alone.
//
// Entries are prefixes of internal names. A class is excluded when its name
// starts with any entry; a member is excluded when "Owner.member" or
// "Owner.memberDescriptor" starts with one, so "com/acme/" excludes a whole
// package and "com/acme/Main.main" excludes every overload of main.
package exclusion

import "strings"

// Set is an ordered list of exclusion prefixes.
type Set struct {
	prefixes []string
}

// NewSet builds a Set, trimming entries and dropping empty ones. Dotted
// entries are accepted and normalized to internal form up to the member
// separator.
func NewSet(entries []string) *Set {
	s := &Set{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		s.prefixes = append(s.prefixes, normalize(e))
	}
	return s
}

// normalize turns "com.acme.Main" into "com/acme/Main". Anything after a
// trailing member part written as "Class#member" is kept verbatim.
func normalize(e string) string {
	if strings.Contains(e, "/") {
		return e
	}
	if i := strings.IndexByte(e, '#'); i >= 0 {
		return strings.ReplaceAll(e[:i], ".", "/") + "." + e[i+1:]
	}
	return strings.ReplaceAll(e, ".", "/")
}

// Len returns the number of prefixes.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.prefixes)
}

// Prefixes returns a copy of the entries in order.
func (s *Set) Prefixes() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.prefixes...)
}

func (s *Set) match(name string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Class reports whether the class with the given internal name matches.
func (s *Set) Class(name string) bool {
	return s.match(name)
}

// Member reports whether a method or field of owner matches, either by the
// owner alone or by "owner.name" / "owner.namedesc".
func (s *Set) Member(owner, name, desc string) bool {
	return s.match(owner) || s.match(owner+"."+name+desc)
}

// Resolver combines the run-wide root set with one transform's own set. An
// entity is excluded when either set excludes it.
type Resolver struct {
	root  *Set
	local *Set
}

// NewResolver returns a Resolver over root and local. local may be nil or
// the root set itself.
func NewResolver(root, local *Set) *Resolver {
	return &Resolver{root: root, local: local}
}

// Excluded reports whether the class is excluded.
func (r *Resolver) Excluded(class string) bool {
	if r.root.Class(class) {
		return true
	}
	return r.local != r.root && r.local.Class(class)
}

// ExcludedMethod reports whether the method of class is excluded.
func (r *Resolver) ExcludedMethod(class, name, desc string) bool {
	if r.root.Member(class, name, desc) {
		return true
	}
	return r.local != r.root && r.local.Member(class, name, desc)
}

// ExcludedField reports whether the field of class is excluded.
func (r *Resolver) ExcludedField(class, name, desc string) bool {
	return r.ExcludedMethod(class, name, desc)
}
