package directives

// Provisioner is the external cloud-provisioner collaborator (spec.md
// §6): listing cross-stack exports, setting a stack policy, and
// describing an existing stack's parameters (needed to resolve
// UsePreviousValue). Stack create/update/rollback belongs to the CLI
// driver, not the core.
type Provisioner interface {
	// ListExports returns every cross-stack export visible in the
	// region, paginating internally.
	ListExports() (map[string]string, error)

	// SetStackPolicy installs policyJSON as stackName's stack policy.
	SetStackPolicy(stackName, policyJSON string) error

	// DescribeStackParameters returns the current parameter values of an
	// existing stack. found is false if no such stack exists.
	DescribeStackParameters(stackName string) (params map[string]string, found bool, err error)
}
