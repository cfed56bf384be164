// Package classpath holds every class and resource of a run and loads them
// from archives.
package classpath

import (
	"github.com/whit3rabbit/jvmmixer/internal/classfile"
)

// Resource is an archive entry copied to the output unchanged.
type Resource struct {
	Path string
	Data []byte
}

// Registry tracks three collections, each iterated in insertion order:
// classes that will be written, every class known for type resolution, and
// pass-through resources. Every emitted class is also on the classpath.
type Registry struct {
	classes     map[string]*classfile.Class
	classOrder  []string
	classPath   map[string]*classfile.Class
	passThrough map[string][]byte
	passOrder   []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		classes:     map[string]*classfile.Class{},
		classPath:   map[string]*classfile.Class{},
		passThrough: map[string][]byte{},
	}
}

// AddClass registers c for output and resolution. A later class with the
// same name replaces the earlier one but keeps its position.
func (r *Registry) AddClass(c *classfile.Class) {
	if _, ok := r.classes[c.Name]; !ok {
		r.classOrder = append(r.classOrder, c.Name)
	}
	r.classes[c.Name] = c
	r.classPath[c.Name] = c
}

// AddClassPath registers c for resolution only. Emitted classes win over
// library classes of the same name.
func (r *Registry) AddClassPath(c *classfile.Class) {
	if _, emitted := r.classes[c.Name]; emitted {
		return
	}
	r.classPath[c.Name] = c
}

// AddPassThrough registers a resource copied verbatim to the output.
func (r *Registry) AddPassThrough(path string, data []byte) {
	if _, ok := r.passThrough[path]; !ok {
		r.passOrder = append(r.passOrder, path)
	}
	r.passThrough[path] = data
}

// Classes returns a snapshot of the emitted classes in insertion order.
// Classes added while the caller iterates the snapshot are not included.
func (r *Registry) Classes() []*classfile.Class {
	out := make([]*classfile.Class, 0, len(r.classOrder))
	for _, name := range r.classOrder {
		out = append(out, r.classes[name])
	}
	return out
}

// Class returns the emitted class with the given internal name.
func (r *Registry) Class(name string) (*classfile.Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Lookup returns any known class, emitted or library, by internal name.
func (r *Registry) Lookup(name string) (*classfile.Class, bool) {
	c, ok := r.classPath[name]
	return c, ok
}

// HasClass reports whether name is known on the classpath. It also matches
// pass-through entries so generated names never shadow an opaque class file.
func (r *Registry) HasClass(name string) bool {
	if _, ok := r.classPath[name]; ok {
		return true
	}
	_, ok := r.passThrough[name+".class"]
	return ok
}

// PassThrough returns the pass-through resources in insertion order.
func (r *Registry) PassThrough() []Resource {
	out := make([]Resource, 0, len(r.passOrder))
	for _, p := range r.passOrder {
		out = append(out, Resource{Path: p, Data: r.passThrough[p]})
	}
	return out
}

// Stats returns the sizes of the three collections.
func (r *Registry) Stats() (classes, classPath, passThrough int) {
	return len(r.classes), len(r.classPath), len(r.passThrough)
}
