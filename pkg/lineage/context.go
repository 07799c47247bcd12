package lineage

import (
	"strings"

	"golang.org/x/text/cases"
)

// Context maps model names to models, with an optional parent.
//
// Lookups search the local models first and then the parent chain. AddModel
// only ever writes locally, so a child never changes what its parent sees.
type Context struct {
	models map[string]*Model
	order  []string
	parent *Context
}

// NewContext creates an empty context under parent, which may be nil.
func NewContext(parent *Context) *Context {
	return &Context{
		models: make(map[string]*Model),
		parent: parent,
	}
}

// Child creates an empty context whose parent is c.
func (c *Context) Child() *Context {
	return NewContext(c)
}

// Parent returns the parent context, or nil at the root.
func (c *Context) Parent() *Context {
	return c.parent
}

// AddModel registers m under name in this context, replacing any model of
// the same name in this context and shadowing one in a parent.
func (c *Context) AddModel(name string, m *Model) {
	key := foldName(name)
	if _, exists := c.models[key]; !exists {
		c.order = append(c.order, key)
	}
	c.models[key] = m
}

// GetModel looks name up in this context and then in its parents.
//
// A dotted name such as analytics.staging.orders that is not registered as
// written is retried with its last component, so database and schema
// qualifiers do not hide a model registered under its bare name.
func (c *Context) GetModel(name string) (*Model, bool) {
	if m, ok := c.lookup(foldName(name)); ok {
		return m, true
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return c.lookup(foldName(name[i+1:]))
	}
	return nil, false
}

func (c *Context) lookup(key string) (*Model, bool) {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if m, ok := ctx.models[key]; ok {
			return m, true
		}
	}
	return nil, false
}

// FollowModelReference returns the column ref points at and the model that
// owns it. The model is nil when no context in the chain has ref's model;
// the column is nil when the model exists but has no such column.
func (c *Context) FollowModelReference(ref ModelReference) (*Column, *Model) {
	m, ok := c.GetModel(ref.ModelName)
	if !ok {
		return nil, nil
	}
	col, _ := m.Column(ref.ColumnName)
	return col, m
}

// Models returns the models registered locally, in registration order.
func (c *Context) Models() []*Model {
	out := make([]*Model, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.models[key])
	}
	return out
}

// Len returns the number of models registered locally.
func (c *Context) Len() int {
	return len(c.models)
}

// foldName folds identifier case the way unquoted SQL identifiers compare.
// A Caser keeps state, so one is made per call.
func foldName(name string) string {
	return cases.Fold().String(name)
}
