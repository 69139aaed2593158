package directives

import (
	"fmt"
	"os"

	"github.com/awsqed/cfn-plus/actions"
	"github.com/awsqed/cfn-plus/cfnerr"
	"github.com/awsqed/cfn-plus/docnode"
	"github.com/awsqed/cfn-plus/exprs"
	"github.com/awsqed/cfn-plus/tmplctx"
	"gopkg.in/yaml.v3"
)

// evalStackResource implements Aruba::Stack (spec.md §4.2): it imports a
// sub-template, evaluates its directives against a derived context, uploads
// the rewritten text to S3 under a content-addressed key, and replaces the
// resource with a plain AWS::CloudFormation::Stack pointing at it. Nesting
// is rejected — a sub-template can't itself contain Aruba::Stack.
func evalStackResource(r *Registry, resource *yaml.Node, ctx *tmplctx.Context) (*ResourceResult, error) {
	if ctx.TemplateIsImported {
		return nil, cfnerr.Template("cannot have imported template in imported template")
	}

	invalid := func() error {
		text, _ := docnode.Dump(resource, 2)
		return cfnerr.Template("invalid argument for %s: %s", DirStackResource, text)
	}
	if !docnode.IsMapping(resource) {
		return nil, invalid()
	}
	props := docnode.Get(resource, "Properties")
	if !docnode.IsMapping(props) {
		return nil, invalid()
	}
	templateNode := docnode.Get(props, "Template")
	if !docnode.IsMapping(templateNode) {
		return nil, invalid()
	}
	localPathNode := docnode.Get(templateNode, "LocalPath")
	s3DestNode := docnode.Get(templateNode, "S3Dest")
	if localPathNode == nil || s3DestNode == nil {
		return nil, invalid()
	}
	paramsNode := docnode.Get(props, "Parameters")

	localPath, err := exprs.Eval(localPathNode, ctx)
	if err != nil {
		return nil, err
	}
	s3Dest, err := exprs.Eval(s3DestNode, ctx)
	if err != nil {
		return nil, err
	}
	bucket, dirKey, err := ParseS3URI(s3Dest)
	if err != nil {
		return nil, err
	}

	// Parameters are evaluated best-effort against the OUTER context and
	// bound into the sub-template's symbol table; an entry that can't be
	// resolved yet (e.g. it references a resource attribute only known at
	// deploy time) is simply skipped, not an error.
	newCtx := ctx.Copy()
	if docnode.IsMapping(paramsNode) {
		for i := 0; i+1 < len(paramsNode.Content); i += 2 {
			name := paramsNode.Content[i].Value
			value, err := exprs.Eval(paramsNode.Content[i+1], ctx)
			if err != nil {
				continue
			}
			newCtx.SetVar(name, value)
		}
	}

	templateAbsPath := ctx.AbsPath(localPath)
	contents, err := os.ReadFile(templateAbsPath)
	if err != nil {
		return nil, cfnerr.Wrap(cfnerr.Template("cannot read %s", templateAbsPath), err)
	}
	importedTemplateText := string(contents)

	newCtx.TemplateIsImported = true
	newCtx.TemplatePath = templateAbsPath
	newCtx.HasStackName = false
	newCtx.StackName = ""

	var renderedTemplate string
	var before, after []actions.Action
	if cached, ok := newCtx.CacheGet(importedTemplateText); ok {
		// A cache hit only recovers the rendered text, not the actions that
		// produced it — the sub-template's side effects ran (and were
		// recorded) the first time it was evaluated.
		renderedTemplate = cached
	} else {
		result, err := newCtx.ProcessFunc()(importedTemplateText, newCtx)
		if err != nil {
			return nil, err
		}
		renderedTemplate = result.RenderedTemplate
		before, after = result.Before, result.After
		newCtx.CachePut(importedTemplateText, renderedTemplate)
	}

	hash := actions.SumHex([]byte(renderedTemplate))
	s3Key := fmt.Sprintf("%s/%s", dirKey, hash)

	uploadAction := func(ledger *actions.Ledger) error {
		return actions.Upload(r.Store, bucket, s3Key, []byte(renderedTemplate))(ledger)
	}

	templateURL := fmt.Sprintf("https://s3-%s.amazonaws.com/%s/%s", ctx.Region, bucket, s3Key)
	cfnResourceProps := docnode.NewMapping()
	docnode.Set(cfnResourceProps, "TemplateURL", docnode.NewString(templateURL))
	if paramsNode != nil {
		docnode.Set(cfnResourceProps, "Parameters", docnode.Clone(paramsNode))
	}
	cfnResource := docnode.NewMapping()
	docnode.Set(cfnResource, "Type", docnode.NewString("AWS::CloudFormation::Stack"))
	docnode.Set(cfnResource, "Properties", cfnResourceProps)

	return &ResourceResult{
		Replace: cfnResource,
		Before:  append([]actions.Action{uploadAction}, before...),
		After:   after,
	}, nil
}
