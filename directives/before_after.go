package directives

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/awsqed/cfn-plus/actions"
	"github.com/awsqed/cfn-plus/cfnerr"
	"github.com/awsqed/cfn-plus/docnode"
	"github.com/awsqed/cfn-plus/exprs"
	"github.com/awsqed/cfn-plus/tmplctx"
	"gopkg.in/yaml.v3"
)

// evalBeforeCreation implements Aruba::BeforeCreation.
func evalBeforeCreation(r *Registry, arg *yaml.Node, ctx *tmplctx.Context) (*TagResult, error) {
	acts, err := parseActionSequence(r, DirBeforeCreation, arg, ctx)
	if err != nil {
		return nil, err
	}
	return &TagResult{Before: acts}, nil
}

// evalAfterCreation implements Aruba::AfterCreation.
func evalAfterCreation(r *Registry, arg *yaml.Node, ctx *tmplctx.Context) (*TagResult, error) {
	acts, err := parseActionSequence(r, DirAfterCreation, arg, ctx)
	if err != nil {
		return nil, err
	}
	return &TagResult{After: acts}, nil
}

// parseActionSequence evaluates the shared shape of Aruba::BeforeCreation
// and Aruba::AfterCreation: a sequence of single-entry
// {S3Mkdir|S3Sync|S3Upload: arg} mappings. Forbidden in imported templates.
func parseActionSequence(r *Registry, directiveName string, arg *yaml.Node, ctx *tmplctx.Context) ([]actions.Action, error) {
	if ctx.TemplateIsImported {
		return nil, cfnerr.Template("actions are not allowed in this template, but found %s", directiveName)
	}
	if !docnode.IsSequence(arg) {
		return nil, cfnerr.Template("invalid value for %s: must be a sequence", directiveName)
	}

	var result []actions.Action
	for _, item := range arg.Content {
		actionName, actionArg, ok := docnode.SingleKey(item)
		if !ok {
			return nil, cfnerr.Template("invalid value for %s: each entry must be a single-key mapping", directiveName)
		}

		var act actions.Action
		var err error
		switch actionName {
		case "S3Mkdir":
			act, err = doMkdir(r, actionArg, ctx)
		case "S3Sync":
			act, err = doSync(r, actionArg, ctx)
		case "S3Upload":
			act, err = doUpload(r, actionArg, ctx)
		default:
			return nil, cfnerr.Template("invalid action: %s", actionName)
		}
		if err != nil {
			return nil, err
		}
		result = append(result, act)
	}
	return result, nil
}

// doMkdir implements S3Mkdir(uri): ensures a trailing '/' and emits the
// make_dir primitive.
func doMkdir(r *Registry, argNode *yaml.Node, ctx *tmplctx.Context) (actions.Action, error) {
	uri, err := exprs.Eval(argNode, ctx)
	if err != nil {
		return nil, err
	}
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}
	return actions.MakeDir(r.Store, bucket, key), nil
}

// doUpload implements S3Upload({LocalFile, S3Dest}): the key must not end
// with '/'. The file is read lazily, at action-execution time, so a file
// written between evaluation and deployment is still picked up.
func doUpload(r *Registry, argNode *yaml.Node, ctx *tmplctx.Context) (actions.Action, error) {
	if !docnode.IsMapping(argNode) {
		return nil, cfnerr.Template("invalid argument for S3Upload: must be a mapping")
	}
	localFileNode := docnode.Get(argNode, "LocalFile")
	s3DestNode := docnode.Get(argNode, "S3Dest")
	if localFileNode == nil || s3DestNode == nil {
		return nil, cfnerr.Template("invalid argument for S3Upload: requires LocalFile and S3Dest")
	}

	localFile, err := exprs.Eval(localFileNode, ctx)
	if err != nil {
		return nil, err
	}
	s3Dest, err := exprs.Eval(s3DestNode, ctx)
	if err != nil {
		return nil, err
	}
	bucket, key, err := ParseS3URI(s3Dest)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(key, "/") {
		return nil, cfnerr.Template("S3Upload: key must not end with '/'")
	}

	absPath := ctx.AbsPath(localFile)
	return func(ledger *actions.Ledger) error {
		content, err := os.ReadFile(absPath)
		if err != nil {
			return err
		}
		return actions.Upload(r.Store, bucket, key, content)(ledger)
	}, nil
}

// doSync implements S3Sync({LocalDir, S3Dest}): deletes remote objects
// with no matching local file and uploads every local file, sharing the
// same ledger so all of a sync's effects roll back together.
func doSync(r *Registry, argNode *yaml.Node, ctx *tmplctx.Context) (actions.Action, error) {
	if !docnode.IsMapping(argNode) {
		return nil, cfnerr.Template("invalid argument for S3Sync: must be a mapping")
	}
	localDirNode := docnode.Get(argNode, "LocalDir")
	s3DestNode := docnode.Get(argNode, "S3Dest")
	if localDirNode == nil || s3DestNode == nil {
		return nil, cfnerr.Template("invalid argument for S3Sync: requires LocalDir and S3Dest")
	}

	localDir, err := exprs.Eval(localDirNode, ctx)
	if err != nil {
		return nil, err
	}
	s3Dest, err := exprs.Eval(s3DestNode, ctx)
	if err != nil {
		return nil, err
	}
	bucket, dirKey, err := ParseS3URI(s3Dest)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(dirKey, "/") {
		dirKey += "/"
	}
	absLocalDir := ctx.AbsPath(localDir)

	return func(ledger *actions.Ledger) error {
		info, statErr := os.Stat(absLocalDir)
		if statErr != nil || !info.IsDir() {
			return cfnerr.Template("S3Sync: %s is not a directory", absLocalDir)
		}

		remoteKeys, err := r.Store.ListObjects(bucket, dirKey)
		if err != nil {
			return err
		}
		localFiles := make(map[string]bool)
		walkErr := filepath.Walk(absLocalDir, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(absLocalDir, path)
			if err != nil {
				return err
			}
			localFiles[filepath.ToSlash(rel)] = true
			return nil
		})
		if walkErr != nil {
			return walkErr
		}

		var toDelete []string
		for _, key := range remoteKeys {
			rel := strings.TrimPrefix(key, dirKey)
			if !localFiles[rel] {
				toDelete = append(toDelete, rel)
			}
		}
		sort.Strings(toDelete)
		for _, rel := range toDelete {
			if err := actions.Delete(r.Store, bucket, dirKey+rel)(ledger); err != nil {
				return err
			}
		}

		localRels := make([]string, 0, len(localFiles))
		for rel := range localFiles {
			localRels = append(localRels, rel)
		}
		sort.Strings(localRels)
		for _, rel := range localRels {
			content, err := os.ReadFile(filepath.Join(absLocalDir, filepath.FromSlash(rel)))
			if err != nil {
				return err
			}
			if err := actions.Upload(r.Store, bucket, dirKey+rel, content)(ledger); err != nil {
				return err
			}
		}
		return nil
	}, nil
}
