// Package exprs implements the embedded expression sub-language: variable
// references, string interpolation, and cross-template imports, resolved
// against a tmplctx.Context. It is grounded on the original tool's
// eval_cfn_expr/_eval_cfn_sub_str dispatch, translated from a regex/cStringIO
// scan into Go's regexp.FindAllStringSubmatchIndex plus a strings.Builder.
package exprs

import (
	"regexp"
	"strings"

	"github.com/awsqed/cfn-plus/cfnerr"
	"github.com/awsqed/cfn-plus/docnode"
	"github.com/awsqed/cfn-plus/tmplctx"
	"gopkg.in/yaml.v3"
)

var interpolationPattern = regexp.MustCompile(`\$\{([-.:_0-9A-Za-z]*)\}`)

// Eval resolves any node to a scalar string. Plain scalars pass through
// unchanged; a mapping with exactly one entry whose key is Ref, Fn::Sub, or
// Fn::ImportValue is interpreted. Any other shape is InvalidTemplate here
// (the document-rewriting code is more permissive — it leaves unrecognised
// single-entry mappings alone rather than rejecting them — but the
// evaluator itself only ever sees nodes it's being asked to resolve to a
// value).
func Eval(node *yaml.Node, ctx *tmplctx.Context) (string, error) {
	if docnode.IsScalar(node) {
		return node.Value, nil
	}

	key, value, ok := docnode.SingleKey(node)
	if !ok {
		return "", cfnerr.Template("invalid expression: %s", describe(node))
	}

	switch key {
	case "Ref":
		return evalRef(value, ctx)
	case "Fn::Sub":
		return evalSub(value, ctx)
	case "Fn::ImportValue":
		return evalImportValue(value, ctx)
	default:
		return "", cfnerr.Template("unknown function: %s", key)
	}
}

func evalRef(node *yaml.Node, ctx *tmplctx.Context) (string, error) {
	if !docnode.IsScalar(node) {
		return "", cfnerr.Template("invalid argument for 'Ref': %s", describe(node))
	}
	v, ok := ctx.ResolveVar(node.Value)
	if !ok {
		return "", cfnerr.Template("cannot resolve variable %q", node.Value)
	}
	return v, nil
}

func evalImportValue(node *yaml.Node, ctx *tmplctx.Context) (string, error) {
	name, err := Eval(node, ctx)
	if err != nil {
		return "", err
	}
	value, ok, err := ctx.ResolveExport(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", cfnerr.Template("no such CloudFormation export: %s", name)
	}
	return value, nil
}

func evalSub(node *yaml.Node, ctx *tmplctx.Context) (string, error) {
	switch {
	case docnode.IsScalar(node):
		return interpolate(node.Value, ctx)
	case docnode.IsSequence(node):
		return evalSubList(node, ctx)
	default:
		return "", cfnerr.Template("invalid argument for 'Fn::Sub': %s", describe(node))
	}
}

func evalSubList(node *yaml.Node, ctx *tmplctx.Context) (string, error) {
	if len(node.Content) != 2 {
		return "", cfnerr.Template("invalid argument for 'Fn::Sub': expected [format, locals]")
	}
	format, locals := node.Content[0], node.Content[1]

	formatStr, err := Eval(format, ctx)
	if err != nil {
		return "", err
	}

	if !docnode.IsMapping(locals) {
		return "", cfnerr.Template("invalid argument for 'Fn::Sub': locals must be a mapping")
	}

	branch := ctx.Copy()
	for i := 0; i+1 < len(locals.Content); i += 2 {
		name := locals.Content[i].Value
		value, err := Eval(locals.Content[i+1], ctx) // evaluated against the OUTER context
		if err != nil {
			return "", err
		}
		branch.SetVar(name, value)
	}

	return interpolate(formatStr, branch)
}

// interpolate implements the ${NAME} substitution syntax against ctx.
// Literal '$' with no matching braces is copied through verbatim.
func interpolate(format string, ctx *tmplctx.Context) (string, error) {
	var out strings.Builder
	pos := 0
	for _, loc := range interpolationPattern.FindAllStringSubmatchIndex(format, -1) {
		start, end := loc[0], loc[1]
		nameStart, nameEnd := loc[2], loc[3]
		name := format[nameStart:nameEnd]

		value, ok := ctx.ResolveVar(name)
		if !ok {
			return "", cfnerr.Template("cannot resolve variable %q", name)
		}

		out.WriteString(format[pos:start])
		out.WriteString(value)
		pos = end
	}
	out.WriteString(format[pos:])
	return out.String(), nil
}

func describe(node *yaml.Node) string {
	if node == nil {
		return "<nil>"
	}
	text, err := docnode.Dump(node, 2)
	if err != nil {
		return node.Value
	}
	return strings.TrimSpace(text)
}
