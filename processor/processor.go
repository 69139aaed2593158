// Package processor implements the two-pass template processor
// (spec.md §4.4): pass 1 discovers directives embedded as mapping keys
// under Metadata and each Resources.* entry, pass 2 discovers directives
// appearing as a resource's Type. It is grounded on the original tool's
// _process_template/_processs_tags/_processs_resources dispatch.
package processor

import (
	"os"
	"path/filepath"

	"github.com/awsqed/cfn-plus/actions"
	"github.com/awsqed/cfn-plus/cfnerr"
	"github.com/awsqed/cfn-plus/directives"
	"github.com/awsqed/cfn-plus/docnode"
	"github.com/awsqed/cfn-plus/tmplctx"
	"gopkg.in/yaml.v3"
)

// Process parses templateText, runs both passes against reg, and
// serialises the rewritten tree back to text. Callers bind reg in a closure
// to use it as a tmplctx.ProcessFunc.
func Process(reg *directives.Registry, templateText string, ctx *tmplctx.Context) (tmplctx.ProcessResult, error) {
	root, err := docnode.Parse(templateText)
	if err != nil {
		return tmplctx.ProcessResult{}, err
	}

	tagBefore, tagAfter, err := processTags(reg, root, ctx)
	if err != nil {
		return tmplctx.ProcessResult{}, wrapInTemplate(ctx, err)
	}

	resourceBefore, resourceAfter, err := processResources(reg, root, ctx)
	if err != nil {
		return tmplctx.ProcessResult{}, wrapInTemplate(ctx, err)
	}

	// Pass 2's actions precede pass 1's, per spec.md §4.4.
	before := append(append([]actions.Action{}, resourceBefore...), tagBefore...)
	after := append(append([]actions.Action{}, resourceAfter...), tagAfter...)

	rendered, err := docnode.Dump(root, 2)
	if err != nil {
		return tmplctx.ProcessResult{}, err
	}

	return tmplctx.ProcessResult{
		RenderedTemplate: rendered,
		Before:           before,
		After:            after,
	}, nil
}

func wrapInTemplate(ctx *tmplctx.Context, err error) error {
	e, ok := err.(*cfnerr.Error)
	if !ok || e.Kind != cfnerr.InvalidTemplate || ctx.TemplatePath == "" {
		return err
	}
	return cfnerr.TemplateIn(filepath.Base(ctx.TemplatePath), "%s", e.Error())
}

// processTags runs pass 1: it descends Metadata and each Resources.*
// entry, splicing directive-as-key results in place and never descending
// into the subtree a directive consumed.
func processTags(reg *directives.Registry, root *yaml.Node, ctx *tmplctx.Context) (before, after []actions.Action, err error) {
	if metadata := docnode.Get(root, "Metadata"); docnode.IsMapping(metadata) {
		b, a, err := walkTags(reg, metadata, ctx)
		if err != nil {
			return nil, nil, err
		}
		before = append(before, b...)
		after = append(after, a...)
	}

	resources := docnode.Get(root, "Resources")
	if docnode.IsMapping(resources) {
		for i := 0; i+1 < len(resources.Content); i += 2 {
			name := resources.Content[i].Value
			node := resources.Content[i+1]
			if !docnode.IsMapping(node) {
				continue
			}
			resourceCtx := ctx.WithResource(name, node)
			b, a, err := walkTags(reg, node, resourceCtx)
			if err != nil {
				return nil, nil, err
			}
			before = append(before, b...)
			after = append(after, a...)
		}
	}

	return before, after, nil
}

// walkTags inspects mapping's own keys: a directive key is evaluated and
// spliced in place, with no further descent into its subtree; any other
// key whose value is itself a mapping is descended into, treating that
// value as the next "parent" to inspect.
func walkTags(reg *directives.Registry, mapping *yaml.Node, ctx *tmplctx.Context) (before, after []actions.Action, err error) {
	i := 0
	for i+1 < len(mapping.Content) {
		key := mapping.Content[i].Value
		value := mapping.Content[i+1]

		if directives.IsTagDirective(key) {
			result, err := reg.EvalTag(key, value, ctx)
			if err != nil {
				return nil, nil, err
			}
			if result.Replace != nil {
				mapping.Content[i] = docnode.NewString(result.Replace.Key)
				mapping.Content[i+1] = result.Replace.Value
				i += 2
			} else {
				mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
			}
			before = append(before, result.Before...)
			after = append(after, result.After...)
			continue
		}

		if docnode.IsMapping(value) {
			b, a, err := walkTags(reg, value, ctx)
			if err != nil {
				return nil, nil, err
			}
			before = append(before, b...)
			after = append(after, a...)
		}
		i += 2
	}
	return before, after, nil
}

// processResources runs pass 2: any Resources entry whose Type matches a
// registered resource directive is replaced (or deleted) in place.
func processResources(reg *directives.Registry, root *yaml.Node, ctx *tmplctx.Context) (before, after []actions.Action, err error) {
	resources := docnode.Get(root, "Resources")
	if !docnode.IsMapping(resources) {
		return nil, nil, nil
	}

	i := 0
	for i+1 < len(resources.Content) {
		resourceNode := resources.Content[i+1]
		typeNode := docnode.Get(resourceNode, "Type")
		typ := ""
		if typeNode != nil {
			typ = typeNode.Value
		}

		if !directives.IsResourceDirective(typ) {
			i += 2
			continue
		}

		result, err := reg.EvalResource(typ, resourceNode, ctx)
		if err != nil {
			return nil, nil, err
		}
		if result.Replace != nil {
			resources.Content[i+1] = result.Replace
			i += 2
		} else {
			resources.Content = append(resources.Content[:i], resources.Content[i+2:]...)
		}
		before = append(before, result.Before...)
		after = append(after, result.After...)
	}
	return before, after, nil
}

// ReadTemplateFile is a small convenience for the CLI driver: read a
// template file as text relative to no particular context (the caller
// resolves the path first).
func ReadTemplateFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
