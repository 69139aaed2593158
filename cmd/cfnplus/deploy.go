package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awsqed/cfn-plus/cliconfig"
	"github.com/awsqed/cfn-plus/directives"
	"github.com/awsqed/cfn-plus/driver"
	"github.com/awsqed/cfn-plus/processor"
	"github.com/awsqed/cfn-plus/provisioner/cfnprovisioner"
	"github.com/awsqed/cfn-plus/store/s3store"
)

// stackCreator is the CLI-only capability (spec.md SPEC_FULL §4.6) the
// core's directives.Provisioner deliberately omits.
type stackCreator interface {
	CreateOrUpdateStack(stackName, templateBody string, params map[string]string) error
}

var deployCmd = &cobra.Command{
	Use:   "deploy <template>",
	Short: "Evaluate directives and create or update the stack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		templatePath := args[0]
		region, _ := cmd.Flags().GetString("region")
		stackName, _ := cmd.Flags().GetString("stack-name")
		paramFlags, _ := cmd.Flags().GetStringArray("param")
		paramsFile, _ := cmd.Flags().GetString("params-file")

		if region == "" || stackName == "" {
			return fmt.Errorf("deploy requires --region and --stack-name")
		}

		cfg, err := cliconfig.Resolve(region, stackName, paramsFile, paramFlags)
		if err != nil {
			return err
		}

		store := s3store.New(cfg.Region)
		provisioner := cfnprovisioner.New(cfg.Region)
		reg := directives.NewRegistry(store, provisioner)

		existingParams, existingFound, err := provisioner.DescribeStackParameters(cfg.StackName)
		if err != nil {
			return err
		}
		symbols, err := cliconfig.ResolveParamValues(cfg.Params, existingParams, existingFound)
		if err != nil {
			return err
		}

		ctx, err := buildContext(reg, templatePath, symbols, cfg.Region, cfg.StackName)
		if err != nil {
			return err
		}

		text, err := processor.ReadTemplateFile(templatePath)
		if err != nil {
			return err
		}

		result, err := processor.Process(reg, text, ctx)
		if err != nil {
			return err
		}

		session := driver.NewSession(result.Before, result.After)

		logger.Sugar().Infof("running %d before-creation action(s)", len(result.Before))
		if err := session.DoBefore(); err != nil {
			if undoErr := session.Close(err); undoErr != nil {
				logger.Sugar().Warnf("undoing before-creation actions: %v", undoErr)
			}
			return err
		}

		logger.Sugar().Infof("creating or updating stack %s", cfg.StackName)
		if err := provisioner.CreateOrUpdateStack(cfg.StackName, result.RenderedTemplate, symbols); err != nil {
			if undoErr := session.Close(err); undoErr != nil {
				logger.Sugar().Warnf("undoing before-creation actions: %v", undoErr)
			}
			return err
		}

		logger.Sugar().Infof("running %d after-creation action(s)", len(result.After))
		if err := session.DoAfter(); err != nil {
			if undoErr := session.Close(err); undoErr != nil {
				logger.Sugar().Warnf("undoing after-creation actions: %v", undoErr)
			}
			return err
		}

		if cleanupErr := session.Close(nil); cleanupErr != nil {
			logger.Sugar().Warnf("committing after-creation actions: %v", cleanupErr)
		}
		return nil
	},
}

func init() {
	deployCmd.Flags().String("region", "", "AWS region (required)")
	deployCmd.Flags().String("stack-name", "", "Stack name (required)")
	deployCmd.Flags().StringArray("param", nil, "Template parameter as KEY=VALUE or KEY=USE_PREVIOUS, repeatable")
	deployCmd.Flags().String("params-file", "", "JSON parameters file in the [{ParameterKey,ParameterValue}] shape")
}

var _ stackCreator = (*cfnprovisioner.Client)(nil)
