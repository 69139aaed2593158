// Package cliconfig resolves the CLI driver's region, stack name, and
// template parameters from flags, environment variables, and an optional
// parameters file, in that order of precedence (spec.md SPEC_FULL §4.6).
package cliconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/awsqed/cfn-plus/cfnerr"
)

// Param is one template parameter, matching the
// {ParameterKey, ParameterValue, UsePreviousValue} shape the original tool
// accepted, expressed as a Go struct instead of a loosely-typed dict.
type Param struct {
	Key              string `json:"ParameterKey"`
	Value            string `json:"ParameterValue,omitempty"`
	UsePreviousValue bool   `json:"UsePreviousValue,omitempty"`
}

// Config is the resolved set of inputs the CLI driver needs to build a
// tmplctx.Context and run a deployment.
type Config struct {
	Region    string
	StackName string
	Params    []Param
}

// Resolve layers flag-supplied values over CFNPLUS_REGION /
// CFNPLUS_STACK_NAME environment variables, and merges in a parameters
// file (a JSON array in the CloudFormation CLI's own parameter-file shape)
// when paramsFile is non-empty. Flags win; the file only fills in
// parameters not already supplied via --param.
func Resolve(region, stackName, paramsFile string, paramFlags []string) (Config, error) {
	cfg := Config{Region: region, StackName: stackName}

	if cfg.Region == "" {
		cfg.Region = os.Getenv("CFNPLUS_REGION")
	}
	if cfg.StackName == "" {
		cfg.StackName = os.Getenv("CFNPLUS_STACK_NAME")
	}

	seen := make(map[string]bool)
	for _, raw := range paramFlags {
		p, err := parseParamFlag(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Params = append(cfg.Params, p)
		seen[p.Key] = true
	}

	if paramsFile != "" {
		fileParams, err := loadParamsFile(paramsFile)
		if err != nil {
			return Config{}, err
		}
		for _, p := range fileParams {
			if !seen[p.Key] {
				cfg.Params = append(cfg.Params, p)
			}
		}
	}

	return cfg, nil
}

// parseParamFlag parses "--param KEY=VALUE" or "--param KEY=USE_PREVIOUS",
// the latter mapping to UsePreviousValue per spec.md §8's boundary case.
func parseParamFlag(raw string) (Param, error) {
	parts := strings.SplitN(raw, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return Param{}, cfnerr.Argument("invalid --param %q: expected KEY=VALUE", raw)
	}
	if parts[1] == "USE_PREVIOUS" {
		return Param{Key: parts[0], UsePreviousValue: true}, nil
	}
	return Param{Key: parts[0], Value: parts[1]}, nil
}

func loadParamsFile(path string) ([]Param, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading params file: %w", err)
	}
	var params []Param
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, cfnerr.Argument("invalid params file %s: %v", path, err)
	}
	return params, nil
}

// ResolveParamValues converts Config.Params into the plain
// name→value symbol table a tmplctx.Context needs, resolving
// UsePreviousValue entries against an existing stack's parameters.
// existing is nil when no stack currently exists.
func ResolveParamValues(params []Param, existing map[string]string, existingFound bool) (map[string]string, error) {
	values := make(map[string]string, len(params))
	for _, p := range params {
		if !p.UsePreviousValue {
			values[p.Key] = p.Value
			continue
		}
		if p.Value != "" {
			return nil, cfnerr.Argument("param %q: both UsePreviousValue and an explicit value were given", p.Key)
		}
		if !existingFound {
			return nil, cfnerr.Argument("param %q: told to use previous value but there is no existing stack", p.Key)
		}
		v, ok := existing[p.Key]
		if !ok {
			return nil, cfnerr.Argument("param %q: existing stack has no such parameter", p.Key)
		}
		values[p.Key] = v
	}
	return values, nil
}
