package directives_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/awsqed/cfn-plus/actions"
	"github.com/awsqed/cfn-plus/directives"
	"github.com/awsqed/cfn-plus/tmplctx"
)

func TestBeforeCreationRunsS3Mkdir(t *testing.T) {
	arg := mustParse(t, `
- S3Mkdir: s3://bucket/empty
`)
	store := newFakeStore("bucket")
	reg := directives.NewRegistry(store, nil)
	ctx := tmplctx.New(nil, "us-east-1")

	result, err := reg.EvalTag(directives.DirBeforeCreation, arg, ctx)
	require.NoError(t, err)
	require.Empty(t, result.After)
	require.Len(t, result.Before, 1)

	ledger := &actions.Ledger{}
	require.NoError(t, result.Before[0](ledger))
	require.Len(t, ledger.Undoers, 1)

	keys, err := store.ListObjects("bucket", "empty/")
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestAfterCreationRunsS3Upload(t *testing.T) {
	dir := t.TempDir()
	localFile := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(localFile, []byte("hello"), 0644))

	arg := mustParse(t, `
- S3Upload:
    LocalFile: `+localFile+`
    S3Dest: s3://bucket/readme.txt
`)
	store := newFakeStore("bucket")
	reg := directives.NewRegistry(store, nil)
	ctx := tmplctx.New(nil, "us-east-1")

	result, err := reg.EvalTag(directives.DirAfterCreation, arg, ctx)
	require.NoError(t, err)
	require.Empty(t, result.Before)
	require.Len(t, result.After, 1)

	ledger := &actions.Ledger{}
	require.NoError(t, result.After[0](ledger))

	_, _, exists, err := store.StatObject("bucket", "readme.txt")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestS3UploadRejectsDirectoryLikeKey(t *testing.T) {
	arg := mustParse(t, `
- S3Upload:
    LocalFile: /tmp/anything
    S3Dest: s3://bucket/dir/
`)
	reg := directives.NewRegistry(newFakeStore("bucket"), nil)
	_, err := reg.EvalTag(directives.DirAfterCreation, arg, tmplctx.New(nil, "us-east-1"))
	require.Error(t, err)
}

func TestS3SyncUploadsNewFilesAndDeletesOrphans(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("keep"), 0644))

	store := newFakeStore("bucket")
	reg := directives.NewRegistry(store, nil)
	ctx := tmplctx.New(nil, "us-east-1")

	// seed a remote object with no local counterpart
	seedLedger := &actions.Ledger{}
	require.NoError(t, actions.Upload(store, "bucket", "prefix/stale.txt", []byte("old"))(seedLedger))

	arg := mustParse(t, `
- S3Sync:
    LocalDir: `+dir+`
    S3Dest: s3://bucket/prefix
`)
	result, err := reg.EvalTag(directives.DirBeforeCreation, arg, ctx)
	require.NoError(t, err)
	require.Len(t, result.Before, 1)

	ledger := &actions.Ledger{}
	require.NoError(t, result.Before[0](ledger))

	_, _, keepExists, err := store.StatObject("bucket", "prefix/keep.txt")
	require.NoError(t, err)
	require.True(t, keepExists)

	_, _, staleExists, err := store.StatObject("bucket", "prefix/stale.txt")
	require.NoError(t, err)
	require.False(t, staleExists, "S3Sync must delete objects with no local counterpart")
}

func TestActionsAreForbiddenInImportedTemplate(t *testing.T) {
	arg := mustParse(t, `
- S3Mkdir: s3://bucket/x
`)
	reg := directives.NewRegistry(newFakeStore("bucket"), nil)
	ctx := tmplctx.New(nil, "us-east-1")
	ctx.TemplateIsImported = true

	_, err := reg.EvalTag(directives.DirBeforeCreation, arg, ctx)
	require.Error(t, err)
}
