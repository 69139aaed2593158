package directives

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"

	"github.com/awsqed/cfn-plus/actions"
	"github.com/awsqed/cfn-plus/cfnerr"
	"github.com/awsqed/cfn-plus/docnode"
	"github.com/awsqed/cfn-plus/exprs"
	"github.com/awsqed/cfn-plus/tmplctx"
	"gopkg.in/yaml.v3"
)

type lambdaEntry struct {
	pkgPath string
	content []byte
}

// evalLambdaCode implements Aruba::LambdaCode (spec.md §4.2): reads every
// regular file under LocalPath, computes a canonical archive-content hash
// over entries sorted by in-archive path, derives a content-addressed
// object key, and replaces the node with (Code, {S3Bucket, S3Key}).
func evalLambdaCode(r *Registry, arg *yaml.Node, ctx *tmplctx.Context) (*TagResult, error) {
	if !docnode.IsMapping(arg) {
		return nil, cfnerr.Template("invalid argument for %s: must be a mapping", DirLambdaCode)
	}
	localPathNode := docnode.Get(arg, "LocalPath")
	s3DestNode := docnode.Get(arg, "S3Dest")
	if localPathNode == nil || s3DestNode == nil {
		return nil, cfnerr.Template("%s: requires LocalPath and S3Dest", DirLambdaCode)
	}

	localPath, err := exprs.Eval(localPathNode, ctx)
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

	absLocalPath := ctx.AbsPath(localPath)
	entries, err := readLambdaEntries(absLocalPath)
	if err != nil {
		return nil, err
	}

	hash := canonicalArchiveHash(entries)
	s3Key := dirKey + "/" + hash

	action := func(ledger *actions.Ledger) error {
		archive, err := buildZip(entries)
		if err != nil {
			return err
		}
		return actions.Upload(r.Store, bucket, s3Key, archive)(ledger)
	}

	codeValue := docnode.NewMapping()
	docnode.Set(codeValue, "S3Bucket", docnode.NewString(bucket))
	docnode.Set(codeValue, "S3Key", docnode.NewString(s3Key))

	return &TagResult{
		Replace: &KeyValue{Key: "Code", Value: codeValue},
		Before:  []actions.Action{action},
	}, nil
}

func readLambdaEntries(absLocalPath string) ([]lambdaEntry, error) {
	info, err := os.Stat(absLocalPath)
	if err != nil || !info.IsDir() {
		return nil, cfnerr.Template("%s is not a directory", absLocalPath)
	}

	var entries []lambdaEntry
	err = filepath.Walk(absLocalPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(absLocalPath, path)
		if err != nil {
			return err
		}
		entries = append(entries, lambdaEntry{pkgPath: filepath.ToSlash(rel), content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pkgPath < entries[j].pkgPath })
	return entries, nil
}

// canonicalArchiveHash implements spec.md §6's canonical archive hash:
// entries sorted by in-archive path, each contributing
// len(path)||path||len(bytes)||bytes with a big-endian u64 length.
func canonicalArchiveHash(entries []lambdaEntry) string {
	var buf bytes.Buffer
	for _, e := range entries {
		writeU64(&buf, uint64(len(e.pkgPath)))
		buf.WriteString(e.pkgPath)
		writeU64(&buf, uint64(len(e.content)))
		buf.Write(e.content)
	}
	return actions.SumHex(buf.Bytes())
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

// buildZip packages entries into a zip archive. Entries are written in
// canonical (sorted) order with no modification time so that identical
// content always produces byte-identical archive bytes — the upload
// primitive's own no-op detection depends on that determinism.
func buildZip(entries []lambdaEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e.pkgPath)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(e.content); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
