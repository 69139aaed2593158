package tmplctx_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/awsqed/cfn-plus/tmplctx"
)

func TestResolveVarPrefersLocalSymbolOverPseudoParameter(t *testing.T) {
	ctx := tmplctx.New(map[string]string{"AWS::Region": "overridden"}, "us-east-1")
	v, ok := ctx.ResolveVar("AWS::Region")
	require.True(t, ok)
	require.Equal(t, "overridden", v)
}

func TestResolveVarFallsBackToRegionAndStackName(t *testing.T) {
	ctx := tmplctx.New(nil, "eu-west-1")
	v, ok := ctx.ResolveVar("AWS::Region")
	require.True(t, ok)
	require.Equal(t, "eu-west-1", v)

	_, ok = ctx.ResolveVar("AWS::StackName")
	require.False(t, ok, "StackName is unresolved until HasStackName is set")

	ctx.HasStackName = true
	ctx.StackName = "my-stack"
	v, ok = ctx.ResolveVar("AWS::StackName")
	require.True(t, ok)
	require.Equal(t, "my-stack", v)
}

func TestCopyDuplicatesSymbolsButSharesCache(t *testing.T) {
	parent := tmplctx.New(map[string]string{"A": "1"}, "us-east-1")
	child := parent.Copy()
	child.SetVar("A", "2")

	_, ok := parent.ResolveVar("A")
	require.True(t, ok)
	v, _ := parent.ResolveVar("A")
	require.Equal(t, "1", v, "mutating a copy's symbol table must not affect the parent")

	parent.CachePut("template-text", "rendered")
	cached, ok := child.CacheGet("template-text")
	require.True(t, ok, "a context branched via Copy must share the sub-template cache by reference")
	require.Equal(t, "rendered", cached)
}

func TestCacheKeyDistinguishesByTemplatePathAndSymbols(t *testing.T) {
	ctx1 := tmplctx.New(map[string]string{"Env": "prod"}, "us-east-1")
	ctx1.TemplatePath = "/a/one.yaml"
	ctx1.CachePut("same text", "rendered-for-ctx1")

	// Derive from ctx1 so both contexts share one cache; only the key differs.
	ctx2 := ctx1.Copy()
	ctx2.SetVar("Env", "dev")

	_, ok := ctx2.CacheGet("same text")
	require.False(t, ok, "distinct symbol tables must not share a cache entry even under the same template path")

	ctx3 := ctx1.Copy()
	ctx3.TemplatePath = "/a/two.yaml"

	_, ok = ctx3.CacheGet("same text")
	require.False(t, ok, "distinct template paths must not share a cache entry even with the same symbols")
}

func TestWithResourceScopesNameAndNode(t *testing.T) {
	parent := tmplctx.New(nil, "us-east-1")
	node := &yaml.Node{Kind: yaml.MappingNode}

	child := parent.WithResource("MyBucket", node)
	require.Equal(t, "MyBucket", child.ResourceName)
	require.Same(t, node, child.ResourceNode)
	require.Empty(t, parent.ResourceName, "WithResource must not mutate the parent context")
}

func TestAbsPathResolvesRelativeToTemplateDirectory(t *testing.T) {
	ctx := tmplctx.New(nil, "us-east-1")
	ctx.TemplatePath = "/templates/root/main.yaml"

	abs := ctx.AbsPath("../scripts/run.sh")
	require.Equal(t, "/templates/scripts/run.sh", abs)
}

func TestAbsPathLeavesAbsolutePathsUnchanged(t *testing.T) {
	ctx := tmplctx.New(nil, "us-east-1")
	ctx.TemplatePath = "/templates/root/main.yaml"

	abs := ctx.AbsPath("/opt/scripts/run.sh")
	require.Equal(t, "/opt/scripts/run.sh", abs)
}
