package directives

import (
	"fmt"
	"strings"

	"github.com/awsqed/cfn-plus/cfnerr"
	"github.com/awsqed/cfn-plus/docnode"
	"github.com/awsqed/cfn-plus/tmplctx"
	"gopkg.in/yaml.v3"
)

// userDataScriptTemplate is the bootstrap shell wrapper: it runs every
// step inside go(), captures its exit code, optionally ships the combined
// log to S3, then signals CloudFormation with the result. Placeholders are
// left as Fn::Sub substitutions, not interpolated here — BootstrapActions
// is pure text synthesis; none of its inner values are evaluated, because
// they are resolved by the provisioner at instance-launch time instead.
const userDataScriptTemplate = `#!/bin/bash -x

mkdir -p /var/log/aruba-bootstrap
exec >/var/log/aruba-bootstrap/main 2>&1

function go() {
%s}

go
EXIT_CODE=$?
%s
yum install -y aws-cfn-bootstrap
/opt/aws/bin/cfn-signal -e "${!EXIT_CODE}" --stack "${AWS::StackName}" \
    --resource "%s" --region "${AWS::Region}"
`

const mainLogUploadTemplate = `
# copy combined log to S3
aws s3 cp --content-type text/plain /var/log/aruba-bootstrap/main "${log_uri}/main"
`

const stepScriptTemplate = `    LOG_LOCAL_PATH="/var/log/aruba-bootstrap/%[1]d"
    SCRIPT_LOCAL_PATH="/tmp/aruba-bootstrap/%[1]d"

    mkdir -p "$(dirname ${!SCRIPT_LOCAL_PATH})"
    aws s3 cp "${s3_uri_%[1]d}" "${!SCRIPT_LOCAL_PATH}"
    chmod +x "${!SCRIPT_LOCAL_PATH}"
    sudo -u ec2-user "${!SCRIPT_LOCAL_PATH}" %[2]s > "${!LOG_LOCAL_PATH}" 2>&1
    EXIT_CODE=$?
%[3]s
    if [ "${!EXIT_CODE}" -ne 0 ]; then
        return 1
    fi

`

const stepLogUploadTemplate = `    aws s3 cp --content-type text/plain "${!LOG_LOCAL_PATH}" "${log_uri}/%d"
`

// evalBootstrapActions implements Aruba::BootstrapActions. Unlike every
// other directive, it never calls exprs.Eval on the values inside
// Actions/Args — those are left as template expressions so the
// provisioner resolves them at launch time, matching the spec's "pure
// text synthesis, no evaluation of inner values" rule.
func evalBootstrapActions(r *Registry, arg *yaml.Node, ctx *tmplctx.Context) (*TagResult, error) {
	if !docnode.IsMapping(arg) {
		return nil, cfnerr.Template("%s: must contain a mapping", DirBootstrapActions)
	}
	actionsNode := docnode.Get(arg, "Actions")
	timeoutNode := docnode.Get(arg, "Timeout")
	logURINode := docnode.Get(arg, "LogUri")

	if actionsNode == nil {
		return nil, cfnerr.Template("%s: missing 'Actions'", DirBootstrapActions)
	}
	if timeoutNode == nil {
		return nil, cfnerr.Template("%s: missing 'Timeout'", DirBootstrapActions)
	}
	if !docnode.IsSequence(actionsNode) {
		return nil, cfnerr.Template("%s: 'Actions' must be a sequence", DirBootstrapActions)
	}

	hasLog := logURINode != nil
	subs := docnode.NewMapping()
	if hasLog {
		docnode.Set(subs, "log_uri", docnode.Clone(logURINode))
	}

	var body strings.Builder
	for i, actionNode := range actionsNode.Content {
		if !docnode.IsMapping(actionNode) {
			return nil, cfnerr.Template("%s: an action must be a mapping", DirBootstrapActions)
		}
		pathNode := docnode.Get(actionNode, "Path")
		if pathNode == nil {
			return nil, cfnerr.Template("%s: an action is missing 'Path'", DirBootstrapActions)
		}
		docnode.Set(subs, fmt.Sprintf("s3_uri_%d", i), docnode.Clone(pathNode))

		argsStr := ""
		if argsNode := docnode.Get(actionNode, "Args"); argsNode != nil {
			if !docnode.IsSequence(argsNode) {
				return nil, cfnerr.Template("%s: 'Args' must be a sequence", DirBootstrapActions)
			}
			placeholders := make([]string, 0, len(argsNode.Content))
			for j, a := range argsNode.Content {
				placeholder := fmt.Sprintf("arg_%d_%d", i, j)
				docnode.Set(subs, placeholder, docnode.Clone(a))
				placeholders = append(placeholders, `"${`+placeholder+`}"`)
			}
			argsStr = strings.Join(placeholders, " ")
		}

		stepLog := ""
		if hasLog {
			stepLog = fmt.Sprintf(stepLogUploadTemplate, i)
		}
		body.WriteString(fmt.Sprintf(stepScriptTemplate, i, argsStr, stepLog))
	}

	mainLog := ""
	if hasLog {
		mainLog = mainLogUploadTemplate
	}
	script := fmt.Sprintf(userDataScriptTemplate, body.String(), mainLog, ctx.ResourceName)

	subArgs := docnode.NewSequence()
	subArgs.Content = append(subArgs.Content, docnode.NewString(script), subs)
	fnSub := docnode.NewMapping()
	docnode.Set(fnSub, "Fn::Sub", subArgs)
	userData := docnode.NewMapping()
	docnode.Set(userData, "Fn::Base64", fnSub)

	if ctx.ResourceNode != nil {
		resourceSignal := docnode.NewMapping()
		docnode.Set(resourceSignal, "Timeout", docnode.Clone(timeoutNode))
		creationPolicy := docnode.NewMapping()
		docnode.Set(creationPolicy, "ResourceSignal", resourceSignal)
		docnode.Set(ctx.ResourceNode, "CreationPolicy", creationPolicy)
	}

	return &TagResult{Replace: &KeyValue{Key: "UserData", Value: userData}}, nil
}
