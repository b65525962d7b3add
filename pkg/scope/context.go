// Package scope implements the hierarchical variable store an expression
// executes against.
//
// A Context holds read-only constants and mutable variables and chains to a
// parent. Contexts are passed explicitly; children nest strictly LIFO and a
// Context is not safe for use by more than one goroutine.
package scope

import (
	"sort"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

// Context manages variable storage with parent chaining. Lookups search
// constants, then variables, then the parent. New variables are always
// created in this Context.
type Context struct {
	parent    *Context
	child     *Context
	closed    bool
	constants map[string]types.Value
	vars      map[string]types.Value
	order     []string
}

// New creates a root Context with the given constants.
func New(constants map[string]types.Value) *Context {
	return newContext(nil, constants)
}

func newContext(parent *Context, constants map[string]types.Value) *Context {
	c := &Context{
		parent:    parent,
		constants: make(map[string]types.Value, len(constants)),
		vars:      make(map[string]types.Value),
	}
	for k, v := range constants {
		c.constants[k] = v
	}
	return c
}

// Child opens a nested Context. Only the innermost open Context may open a
// child, and the child must be closed before its parent is used to open
// another one.
func (c *Context) Child(constants map[string]types.Value) (*Context, error) {
	if c.closed {
		return nil, types.NewStateError("cannot open a child of a closed context")
	}
	if c.child != nil {
		return nil, types.NewStateError("context already has an open child")
	}
	c.child = newContext(c, constants)
	return c.child, nil
}

// Close releases a child Context, making its parent current again. Closing
// a Context that still has an open child, or that was already closed, is a
// state error.
func (c *Context) Close() error {
	if c.closed {
		return types.NewStateError("context already closed")
	}
	if c.child != nil {
		return types.NewStateError("context closed while a nested context is still open")
	}
	c.closed = true
	if c.parent != nil {
		c.parent.child = nil
	}
	return nil
}

// Parent returns the enclosing Context, or nil for a root.
func (c *Context) Parent() *Context {
	return c.parent
}

// Get retrieves a value, searching constants, variables and then the
// parent chain.
func (c *Context) Get(key string) (types.Value, bool) {
	if v, ok := c.constants[key]; ok {
		return v, true
	}
	if v, ok := c.vars[key]; ok {
		return v, true
	}
	if c.parent != nil {
		return c.parent.Get(key)
	}
	return types.Null, false
}

// Has reports whether key resolves anywhere in the chain.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// IsConstant reports whether key names a constant of this Context or an
// ancestor.
func (c *Context) IsConstant(key string) bool {
	for cur := c; cur != nil; cur = cur.parent {
		if _, ok := cur.constants[key]; ok {
			return true
		}
	}
	return false
}

// Put sets a variable in this Context and returns the previous value. A key
// naming a constant is left untouched and the constant is returned.
func (c *Context) Put(key string, value types.Value) types.Value {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.constants[key]; ok {
			return v
		}
	}
	prev, ok := c.vars[key]
	if !ok {
		prev, _ = c.Get(key)
		c.order = append(c.order, key)
	}
	c.vars[key] = value
	return prev
}

// PutAll sets every entry of m as a variable.
func (c *Context) PutAll(m *types.OrderedMap) {
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		c.Put(k, v)
	}
}

// Remove deletes a variable of this Context and returns it. Constants and
// parent variables are not removed.
func (c *Context) Remove(key string) (types.Value, bool) {
	v, ok := c.vars[key]
	if !ok {
		return types.Null, false
	}
	delete(c.vars, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return v, true
}

// Keys returns every visible key: parent keys first, then this Context's
// constants sorted, then its variables in insertion order.
func (c *Context) Keys() []string {
	seen := map[string]bool{}
	var keys []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	if c.parent != nil {
		for _, k := range c.parent.Keys() {
			add(k)
		}
	}
	consts := make([]string, 0, len(c.constants))
	for k := range c.constants {
		consts = append(consts, k)
	}
	sort.Strings(consts)
	for _, k := range consts {
		add(k)
	}
	for _, k := range c.order {
		add(k)
	}
	return keys
}

// Snapshot copies every visible binding into a new root Context that
// shares nothing mutable with c. Constants stay constants and variable
// values are cloned.
func (c *Context) Snapshot() *Context {
	s := newContext(nil, nil)
	for _, k := range c.Keys() {
		for cur := c; cur != nil; cur = cur.parent {
			if v, ok := cur.constants[k]; ok {
				s.constants[k] = v
				break
			}
			if v, ok := cur.vars[k]; ok {
				s.vars[k] = v.Clone()
				s.order = append(s.order, k)
				break
			}
		}
	}
	return s
}

// ToMap snapshots every visible key with its resolved value.
func (c *Context) ToMap() *types.OrderedMap {
	m := types.NewOrderedMap()
	for _, k := range c.Keys() {
		v, _ := c.Get(k)
		m.Set(k, v)
	}
	return m
}
