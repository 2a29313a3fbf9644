package tool

import (
	"fmt"
	"sort"

	"github.com/hupe1980/toolagent/model"
)

// Catalog maps tool names to tools. It is immutable after construction and
// safe for concurrent lookups.
type Catalog struct {
	order []string
	tools map[string]Tool
}

// NewCatalog builds a catalog, rejecting duplicate or empty names.
func NewCatalog(tools ...Tool) (*Catalog, error) {
	c := &Catalog{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("catalog: nil tool")
		}
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("catalog: tool with empty name")
		}
		if _, dup := c.tools[name]; dup {
			return nil, fmt.Errorf("catalog: duplicate tool name %q", name)
		}
		c.tools[name] = t
		c.order = append(c.order, name)
	}
	return c, nil
}

// MustNewCatalog is like NewCatalog but panics on error.
func MustNewCatalog(tools ...Tool) *Catalog {
	c, err := NewCatalog(tools...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the tool registered under name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	if c == nil {
		return nil, false
	}
	t, ok := c.tools[name]
	return t, ok
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Names returns tool names in registration order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Tools returns the tools in registration order.
func (c *Catalog) Tools() []Tool {
	if c == nil {
		return nil
	}
	out := make([]Tool, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.tools[n])
	}
	return out
}

// Definitions returns the model declarations in registration order.
func (c *Catalog) Definitions() []model.ToolDefinition {
	if c == nil {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(c.order))
	for _, n := range c.order {
		defs = append(defs, Definition(c.tools[n]))
	}
	return defs
}

// Merge returns a new catalog holding the tools of c followed by extra.
func (c *Catalog) Merge(extra ...Tool) (*Catalog, error) {
	return NewCatalog(append(c.Tools(), extra...)...)
}

// SortedNames returns tool names alphabetically, handy for display.
func (c *Catalog) SortedNames() []string {
	names := c.Names()
	sort.Strings(names)
	return names
}
