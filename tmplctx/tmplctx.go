// Package tmplctx implements the layered symbol context the expression
// evaluator and directive handlers resolve against: caller-supplied
// parameters, ambient region/stack-name/template-path state, and a
// sub-template memoisation cache shared across every context branched from
// a single top-level invocation.
package tmplctx

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/awsqed/cfn-plus/actions"
	"gopkg.in/yaml.v3"
)

// ProcessFunc recurses the two-pass processor into an imported
// sub-template. It is held by the context (not the other way around) so
// Context and the processor don't form an import cycle — the top-level
// caller plugs the function in once at entry.
type ProcessFunc func(templateText string, ctx *Context) (ProcessResult, error)

// ProcessResult is the outcome of processing a template: the serialised
// rewritten template (used as the cache value) plus the accumulated
// before/after actions. The processor package returns this type directly.
type ProcessResult struct {
	RenderedTemplate string
	Before           []actions.Action
	After            []actions.Action
}

// Cache memoises processed sub-template text by (template text, relevant
// context fields). It is shared by reference across every Context copied
// from a common ancestor, and is never shared across separate top-level
// invocations (spec.md §5).
type Cache struct {
	entries map[string]string
}

// NewCache returns an empty, ready-to-use cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Context is the immutable-by-convention record passed to every evaluator
// and directive handler call. Copy performs the shallow-copy-on-branch
// semantics the spec requires: symbols are duplicated, the cache is
// shared.
type Context struct {
	symbols map[string]string

	Region             string
	StackName          string
	HasStackName       bool
	TemplatePath       string
	ResourceName       string
	ResourceNode       *yaml.Node
	TemplateIsImported bool

	cache    *Cache
	process  ProcessFunc
	resolve  ExportResolver
}

// ExportResolver resolves a cross-stack export name to its value via the
// external provisioner collaborator (spec.md §6, "list cross-stack
// exports, paginated").
type ExportResolver func(name string) (string, bool, error)

// New builds a top-level Context. symbols holds the caller-supplied
// template parameters. The recursion hook invoked by the sub-stack
// directive is not set here; the top-level caller installs it once with
// WithProcessFunc.
func New(symbols map[string]string, region string) *Context {
	dup := make(map[string]string, len(symbols))
	for k, v := range symbols {
		dup[k] = v
	}
	return &Context{
		symbols: dup,
		Region:  region,
		cache:   NewCache(),
	}
}

// WithProcessFunc returns ctx with its recursion hook set. Used once at
// the top level to close the cycle between the context and the processor.
func (c *Context) WithProcessFunc(fn ProcessFunc) *Context {
	clone := *c
	clone.process = fn
	return &clone
}

// ProcessFunc returns the recursion hook for evaluating imported
// sub-templates.
func (c *Context) ProcessFunc() ProcessFunc {
	return c.process
}

// WithExportResolver returns ctx with its cross-stack export resolver set.
func (c *Context) WithExportResolver(fn ExportResolver) *Context {
	clone := *c
	clone.resolve = fn
	return &clone
}

// ResolveExport looks up a cross-stack export by name via the bound
// resolver. ok is false both when no resolver is configured and when the
// resolver reports the export doesn't exist.
func (c *Context) ResolveExport(name string) (string, bool, error) {
	if c.resolve == nil {
		return "", false, nil
	}
	return c.resolve(name)
}

// Copy duplicates the symbol table but shares the sub-template cache by
// reference, so memoisation spans every context derived from the same
// top-level invocation.
func (c *Context) Copy() *Context {
	dup := make(map[string]string, len(c.symbols))
	for k, v := range c.symbols {
		dup[k] = v
	}
	clone := *c
	clone.symbols = dup
	return &clone
}

// WithResource returns a copy scoped to the given resource name/node,
// as pass 1 does before descending into each Resources.* entry.
func (c *Context) WithResource(name string, node *yaml.Node) *Context {
	clone := c.Copy()
	clone.ResourceName = name
	clone.ResourceNode = node
	return clone
}

// SetVar binds symbol to value in this context's local symbol table.
func (c *Context) SetVar(symbol, value string) {
	c.symbols[symbol] = value
}

// ResolveVar looks symbol up first among caller/local symbols, then among
// the built-in AWS::StackName / AWS::Region pseudo-parameters.
func (c *Context) ResolveVar(symbol string) (string, bool) {
	if v, ok := c.symbols[symbol]; ok {
		return v, true
	}
	switch symbol {
	case "AWS::Region":
		if c.Region != "" {
			return c.Region, true
		}
	case "AWS::StackName":
		if c.HasStackName {
			return c.StackName, true
		}
	}
	return "", false
}

// AbsPath resolves a path relative to the directory containing the
// current template.
func (c *Context) AbsPath(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	dir := filepath.Dir(c.TemplatePath)
	abs, err := filepath.Abs(filepath.Join(dir, rel))
	if err != nil {
		return filepath.Join(dir, rel)
	}
	return abs
}

// CacheGet returns a previously cached rendering of templateText under
// this context's relevant fields, if any.
func (c *Context) CacheGet(templateText string) (string, bool) {
	key := c.cacheKey(templateText)
	v, ok := c.cache.entries[key]
	return v, ok
}

// CachePut records a rendering of templateText under this context's
// relevant fields.
func (c *Context) CachePut(templateText, rendered string) {
	key := c.cacheKey(templateText)
	c.cache.entries[key] = rendered
}

// cacheKey canonicalises the context fields the design notes flag as
// relevant to sub-template memoisation (symbol contents, region, template
// path, stack name, imported flag), sorting map keys so structurally
// identical symbol tables hash identically regardless of insertion order.
func (c *Context) cacheKey(templateText string) string {
	names := make([]string, 0, len(c.symbols))
	for k := range c.symbols {
		names = append(names, k)
	}
	sort.Strings(names)

	type kv struct {
		K string `json:"k"`
		V string `json:"v"`
	}
	ordered := make([]kv, 0, len(names))
	for _, n := range names {
		ordered = append(ordered, kv{K: n, V: c.symbols[n]})
	}

	payload := struct {
		Template     string `json:"template"`
		Symbols      []kv   `json:"symbols"`
		Region       string `json:"region"`
		TemplatePath string `json:"template_path"`
		StackName    string `json:"stack_name"`
		Imported     bool   `json:"imported"`
	}{
		Template:     templateText,
		Symbols:      ordered,
		Region:       c.Region,
		TemplatePath: c.TemplatePath,
		StackName:    c.StackName,
		Imported:     c.TemplateIsImported,
	}

	b, err := json.Marshal(payload)
	if err != nil {
		// Marshalling a struct of strings/bools never fails; fall back to
		// a degenerate key rather than panicking if it somehow does.
		return templateText + strconv.FormatBool(c.TemplateIsImported)
	}
	return string(b)
}
