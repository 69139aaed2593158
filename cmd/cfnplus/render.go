package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/awsqed/cfn-plus/directives"
	"github.com/awsqed/cfn-plus/processor"
)

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Evaluate Aruba directives and print the rewritten template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		templatePath := args[0]
		region, _ := cmd.Flags().GetString("region")
		stackName, _ := cmd.Flags().GetString("stack-name")

		text, err := processor.ReadTemplateFile(templatePath)
		if err != nil {
			return err
		}

		reg := directives.NewRegistry(nil, nil)
		ctx, err := buildContext(reg, templatePath, nil, region, stackName)
		if err != nil {
			return err
		}

		result, err := processor.Process(reg, text, ctx)
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stdout, result.RenderedTemplate)
		if len(result.Before) > 0 || len(result.After) > 0 {
			logger.Sugar().Infof("template declares %d before-creation and %d after-creation action(s)",
				len(result.Before), len(result.After))
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().String("region", "", "AWS region (for AWS::Region substitution only; render performs no AWS calls)")
	renderCmd.Flags().String("stack-name", "", "Stack name (for AWS::StackName substitution only)")
}
