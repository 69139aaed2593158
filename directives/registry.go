// Package directives implements the closed set of per-directive handlers
// (spec.md §4.2): one per directive kind, each returning a replacement for
// the node it consumed plus any before/after actions it scheduled.
package directives

import (
	"github.com/awsqed/cfn-plus/actions"
	"github.com/awsqed/cfn-plus/tmplctx"
	"gopkg.in/yaml.v3"
)

// KeyValue is a (key, value) pair a tag handler splices in place of the
// directive key it consumed.
type KeyValue struct {
	Key   string
	Value *yaml.Node
}

// TagResult is the outcome of evaluating a directive-as-key node (pass 1).
// Replace == nil means the directive's key is simply deleted with no
// replacement.
type TagResult struct {
	Replace *KeyValue
	Before  []actions.Action
	After   []actions.Action
}

// ResourceResult is the outcome of evaluating a directive-as-resource-type
// node (pass 2). Replace == nil means the resource is deleted outright.
type ResourceResult struct {
	Replace *yaml.Node
	Before  []actions.Action
	After   []actions.Action
}

// TagHandler evaluates a directive-as-key node.
type TagHandler func(r *Registry, arg *yaml.Node, ctx *tmplctx.Context) (*TagResult, error)

// ResourceHandler evaluates a directive-as-resource-type node.
type ResourceHandler func(r *Registry, resource *yaml.Node, ctx *tmplctx.Context) (*ResourceResult, error)

// Directive name constants, the closed set from spec.md §4.2.
const (
	DirLambdaCode       = "Aruba::LambdaCode"
	DirBeforeCreation   = "Aruba::BeforeCreation"
	DirAfterCreation    = "Aruba::AfterCreation"
	DirBootstrapActions = "Aruba::BootstrapActions"
	DirStackPolicy      = "Aruba::StackPolicy"
	DirStackResource    = "Aruba::Stack"
)

var tagHandlers = map[string]TagHandler{
	DirLambdaCode:       evalLambdaCode,
	DirBeforeCreation:   evalBeforeCreation,
	DirAfterCreation:    evalAfterCreation,
	DirBootstrapActions: evalBootstrapActions,
	DirStackPolicy:      evalStackPolicy,
}

var resourceHandlers = map[string]ResourceHandler{
	DirStackResource: evalStackResource,
}

// Registry binds the closed directive-handler set to the external
// collaborators (object store, provisioner) handlers need to build their
// deferred actions against.
type Registry struct {
	Store       actions.ObjectStore
	Provisioner Provisioner
}

// NewRegistry builds a Registry. Either collaborator may be nil for a
// render-only pipeline that never executes actions (the handlers only
// dereference them from inside the Action closures they schedule, not
// during evaluation itself).
func NewRegistry(store actions.ObjectStore, provisioner Provisioner) *Registry {
	return &Registry{Store: store, Provisioner: provisioner}
}

// IsTagDirective reports whether name is a registered directive-as-key
// name.
func IsTagDirective(name string) bool {
	_, ok := tagHandlers[name]
	return ok
}

// IsResourceDirective reports whether typ is a registered
// directive-as-resource-type name.
func IsResourceDirective(typ string) bool {
	_, ok := resourceHandlers[typ]
	return ok
}

// EvalTag invokes the registered handler for name. The caller must check
// IsTagDirective first.
func (r *Registry) EvalTag(name string, arg *yaml.Node, ctx *tmplctx.Context) (*TagResult, error) {
	return tagHandlers[name](r, arg, ctx)
}

// EvalResource invokes the registered handler for typ. The caller must
// check IsResourceDirective first.
func (r *Registry) EvalResource(typ string, resource *yaml.Node, ctx *tmplctx.Context) (*ResourceResult, error) {
	return resourceHandlers[typ](r, resource, ctx)
}
