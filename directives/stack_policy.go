package directives

import (
	"github.com/awsqed/cfn-plus/actions"
	"github.com/awsqed/cfn-plus/cfnerr"
	"github.com/awsqed/cfn-plus/docnode"
	"github.com/awsqed/cfn-plus/tmplctx"
	"gopkg.in/yaml.v3"
)

// evalStackPolicy implements Aruba::StackPolicy: the directive's argument
// is a stack policy document, passed through verbatim (no expression
// evaluation — a stack policy is plain JSON, not template text) and
// installed on the enclosing stack once it exists.
func evalStackPolicy(r *Registry, arg *yaml.Node, ctx *tmplctx.Context) (*TagResult, error) {
	if !docnode.IsMapping(arg) {
		return nil, cfnerr.Template("%s: must contain a mapping", DirStackPolicy)
	}
	if !ctx.HasStackName {
		return nil, cfnerr.Template("%s: stack name is unknown", DirStackPolicy)
	}

	policyJSON, err := docnode.DumpJSON(arg)
	if err != nil {
		return nil, err
	}

	stackName := ctx.StackName
	after := func(ledger *actions.Ledger) error {
		return r.Provisioner.SetStackPolicy(stackName, policyJSON)
	}

	return &TagResult{After: []actions.Action{after}}, nil
}
