package directives_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/awsqed/cfn-plus/directives"
	"github.com/awsqed/cfn-plus/docnode"
	"github.com/awsqed/cfn-plus/tmplctx"
)

func TestBootstrapActionsSynthesizesUserDataWithoutLog(t *testing.T) {
	arg := mustParse(t, `
Timeout: PT15M
Actions:
  - Path: s3://bucket/scripts/install.sh
    Args: ["1.2.3"]
  - Path: s3://bucket/scripts/configure.sh
`)
	reg := directives.NewRegistry(nil, nil)
	instance := mustParse(t, `
Type: AWS::EC2::Instance
Properties: {}
`)
	ctx := tmplctx.New(nil, "us-east-1").WithResource("WebServer", instance)

	result, err := reg.EvalTag(directives.DirBootstrapActions, arg, ctx)
	require.NoError(t, err)
	require.NotNil(t, result.Replace)
	require.Equal(t, "UserData", result.Replace.Key)

	fnBase64 := docnode.Get(result.Replace.Value, "Fn::Base64")
	require.NotNil(t, fnBase64)
	fnSub := docnode.Get(fnBase64, "Fn::Sub")
	require.True(t, docnode.IsSequence(fnSub))
	require.Len(t, fnSub.Content, 2)

	script := fnSub.Content[0].Value
	require.Contains(t, script, "s3_uri_0")
	require.Contains(t, script, "s3_uri_1")
	require.Contains(t, script, "arg_0_0")
	require.NotContains(t, script, "log_uri", "no LogUri was given, so no log upload should be synthesized")

	subs := fnSub.Content[1]
	require.True(t, docnode.Has(subs, "s3_uri_0"))
	require.True(t, docnode.Has(subs, "arg_0_0"))
	require.False(t, docnode.Has(subs, "log_uri"))

	creationPolicy := docnode.Get(instance, "CreationPolicy")
	require.NotNil(t, creationPolicy, "installing CreationPolicy.ResourceSignal.Timeout on the resource")
	timeout := docnode.Get(docnode.Get(creationPolicy, "ResourceSignal"), "Timeout")
	require.Equal(t, "PT15M", timeout.Value)
}

func TestBootstrapActionsWithLogUriUploadsStepAndMainLogs(t *testing.T) {
	arg := mustParse(t, `
Timeout: PT10M
LogUri: s3://bucket/logs
Actions:
  - Path: s3://bucket/scripts/run.sh
`)
	reg := directives.NewRegistry(nil, nil)
	ctx := tmplctx.New(nil, "us-east-1")

	result, err := reg.EvalTag(directives.DirBootstrapActions, arg, ctx)
	require.NoError(t, err)

	fnSub := docnode.Get(docnode.Get(result.Replace.Value, "Fn::Base64"), "Fn::Sub")
	script := fnSub.Content[0].Value
	require.True(t, strings.Contains(script, "log_uri") && strings.Contains(script, "aws s3 cp"))
	require.True(t, docnode.Has(fnSub.Content[1], "log_uri"))
}

func TestBootstrapActionsRequiresTimeoutAndActions(t *testing.T) {
	reg := directives.NewRegistry(nil, nil)
	ctx := tmplctx.New(nil, "us-east-1")

	_, err := reg.EvalTag(directives.DirBootstrapActions, mustParse(t, `Actions: []`), ctx)
	require.Error(t, err)

	_, err = reg.EvalTag(directives.DirBootstrapActions, mustParse(t, `Timeout: PT5M`), ctx)
	require.Error(t, err)
}
