package main

import (
	"path/filepath"

	"github.com/awsqed/cfn-plus/directives"
	"github.com/awsqed/cfn-plus/processor"
	"github.com/awsqed/cfn-plus/tmplctx"
)

// buildContext assembles the top-level Context the way the original
// tool's process_template() entry point did: region and optional stack
// name as ambient state, caller parameters as symbols, the processor
// wired in as the recursion hook that breaks the Context/processor import
// cycle, and the provisioner's export list wired in as the cross-stack
// export resolver.
func buildContext(reg *directives.Registry, templatePath string, symbols map[string]string, region, stackName string) (*tmplctx.Context, error) {
	absPath, err := filepath.Abs(templatePath)
	if err != nil {
		return nil, err
	}

	ctx := tmplctx.New(symbols, region)
	ctx.TemplatePath = absPath
	if stackName != "" {
		ctx.StackName = stackName
		ctx.HasStackName = true
	}

	ctx = ctx.WithProcessFunc(func(text string, c *tmplctx.Context) (tmplctx.ProcessResult, error) {
		return processor.Process(reg, text, c)
	})

	if reg.Provisioner != nil {
		ctx = ctx.WithExportResolver(func(name string) (string, bool, error) {
			exports, err := reg.Provisioner.ListExports()
			if err != nil {
				return "", false, err
			}
			v, ok := exports[name]
			return v, ok, nil
		})
	}

	return ctx, nil
}
