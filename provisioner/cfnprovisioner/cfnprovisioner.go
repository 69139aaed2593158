// Package cfnprovisioner is the concrete directives.Provisioner adapter
// (spec.md §4.8/§6): the only package that imports
// github.com/aws/aws-sdk-go's CloudFormation client. Grounded on the
// original tool's resolve_cfn_export (paginated list_exports) and
// stack_policy_tag/__init__.py's boto3.client('cloudformation', ...) calls.
package cfnprovisioner

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudformation"
)

// Client implements directives.Provisioner against a single AWS region.
type Client struct {
	client *cloudformation.CloudFormation
}

// New builds a Client bound to region.
func New(region string) *Client {
	sess := session.Must(session.NewSession(&aws.Config{Region: aws.String(region)}))
	return &Client{client: cloudformation.New(sess)}
}

// ListExports paginates cloudformation:ListExports, matching the original
// tool's resolve_cfn_export loop over NextToken.
func (c *Client) ListExports() (map[string]string, error) {
	exports := make(map[string]string)
	err := c.client.ListExportsPages(&cloudformation.ListExportsInput{}, func(page *cloudformation.ListExportsOutput, lastPage bool) bool {
		for _, e := range page.Exports {
			if e.Name != nil && e.Value != nil {
				exports[*e.Name] = *e.Value
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return exports, nil
}

// SetStackPolicy installs policyJSON as stackName's stack policy.
func (c *Client) SetStackPolicy(stackName, policyJSON string) error {
	_, err := c.client.SetStackPolicy(&cloudformation.SetStackPolicyInput{
		StackName:       aws.String(stackName),
		StackPolicyBody: aws.String(policyJSON),
	})
	return err
}

// DescribeStackParameters returns the current parameter values of an
// existing stack, used to resolve UsePreviousValue (spec.md §7).
func (c *Client) DescribeStackParameters(stackName string) (map[string]string, bool, error) {
	out, err := c.client.DescribeStacks(&cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == "ValidationError" {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(out.Stacks) == 0 {
		return nil, false, nil
	}

	params := make(map[string]string)
	for _, p := range out.Stacks[0].Parameters {
		if p.ParameterKey != nil && p.ParameterValue != nil {
			params[*p.ParameterKey] = *p.ParameterValue
		}
	}
	return params, true, nil
}

func (c *Client) stackExists(stackName string) (bool, error) {
	_, found, err := c.DescribeStackParameters(stackName)
	return found, err
}

// CreateOrUpdateStack creates stackName if it doesn't exist yet, or
// updates it in place otherwise, and waits for the operation to settle.
// This is deliberately not part of directives.Provisioner — the core only
// needs exports/policy/describe; stack create-or-update is the CLI
// driver's own concern (spec.md "the cloud provisioner itself ... is out
// of scope" for the core).
func (c *Client) CreateOrUpdateStack(stackName, templateBody string, params map[string]string) error {
	cfParams := make([]*cloudformation.Parameter, 0, len(params))
	for k, v := range params {
		cfParams = append(cfParams, &cloudformation.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(v),
		})
	}
	capabilities := []*string{aws.String(cloudformation.CapabilityCapabilityIam)}

	exists, err := c.stackExists(stackName)
	if err != nil {
		return err
	}

	describeInput := &cloudformation.DescribeStacksInput{StackName: aws.String(stackName)}
	if exists {
		if _, err := c.client.UpdateStack(&cloudformation.UpdateStackInput{
			StackName:    aws.String(stackName),
			TemplateBody: aws.String(templateBody),
			Parameters:   cfParams,
			Capabilities: capabilities,
		}); err != nil {
			return err
		}
		return c.client.WaitUntilStackUpdateComplete(describeInput)
	}

	if _, err := c.client.CreateStack(&cloudformation.CreateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(templateBody),
		Parameters:   cfParams,
		Capabilities: capabilities,
	}); err != nil {
		return err
	}
	return c.client.WaitUntilStackCreateComplete(describeInput)
}
