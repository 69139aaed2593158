package actions

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // sha1 is the spec's mandated content-hash algorithm, not used for anything security-sensitive.
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/awsqed/cfn-plus/cfnerr"
)

// HashAlg is the content-hash algorithm spec.md §6 mandates.
const HashAlg = "sha1"

// HashMetadataKey is the object-metadata key under which the content
// hash is stored, "<alg>_sum".
const HashMetadataKey = HashAlg + "_sum"

// SumHex returns the lower-case hex SHA-1 digest of data (used for
// content-addressed object keys).
func SumHex(data []byte) string {
	sum := sha1.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// SumBase64 returns the base64-encoded SHA-1 digest of data (used for the
// sha1_sum object-metadata value, matching the asymmetry spec.md §6 calls
// out explicitly: hex for the key, base64 for the metadata).
func SumBase64(data []byte) string {
	sum := sha1.Sum(data) //nolint:gosec
	return base64.StdEncoding.EncodeToString(sum[:])
}

func requireBucket(store ObjectStore, bucket string) error {
	if err := store.HeadBucket(bucket); err != nil {
		return cfnerr.Template("no such S3 bucket: %s", bucket)
	}
	versioned, err := store.GetBucketVersioning(bucket)
	if err != nil {
		return err
	}
	if !versioned {
		return cfnerr.Template("bucket %s must have versioning enabled", bucket)
	}
	return nil
}

// Upload implements spec.md §4.3 "upload": a no-op if an identical object
// already exists by content hash, otherwise a new version carrying the
// hash metadata, with an undoer that deletes the new version and — if a
// previous version existed — a committer that purges it once the caller's
// provisioning step has succeeded.
func Upload(store ObjectStore, bucket, key string, content []byte) Action {
	return func(ledger *Ledger) error {
		if err := requireBucket(store, bucket); err != nil {
			return err
		}

		hash := SumBase64(content)

		prevVersion, metadata, exists, err := store.StatObject(bucket, key)
		if err != nil {
			return err
		}
		if exists && metadata[HashMetadataKey] == hash {
			// object already exists with identical content: no-op
			return nil
		}

		newVersion, err := store.PutObject(bucket, key, bytes.NewReader(content), map[string]string{
			HashMetadataKey: hash,
		})
		if err != nil {
			return err
		}
		if newVersion == "" {
			return cfnerr.Template("bucket %s must have versioning enabled", bucket)
		}

		ledger.AddUndoer(func() error {
			_, err := store.DeleteObject(bucket, key, newVersion)
			return err
		})

		if exists {
			ledger.AddCommitter(func() error {
				_, err := store.DeleteObject(bucket, key, prevVersion)
				return err
			})
		}
		return nil
	}
}

// Delete implements spec.md §4.3 "delete": a no-op if the object is
// already absent, otherwise a soft delete (delete marker) with an undoer
// that removes the marker and a committer that purges both the marker and
// the version it superseded.
func Delete(store ObjectStore, bucket, key string) Action {
	return func(ledger *Ledger) error {
		if err := requireBucket(store, bucket); err != nil {
			return err
		}

		prevVersion, _, exists, err := store.StatObject(bucket, key)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		markerVersion, err := store.DeleteObject(bucket, key, "")
		if err != nil {
			return err
		}

		ledger.AddUndoer(func() error {
			_, err := store.DeleteObject(bucket, key, markerVersion)
			return err
		})
		ledger.AddCommitter(func() error {
			if _, err := store.DeleteObject(bucket, key, prevVersion); err != nil {
				return err
			}
			_, err := store.DeleteObject(bucket, key, markerVersion)
			return err
		})
		return nil
	}
}

// MakeDir implements spec.md §4.3 "make_dir": a no-op if any object
// already has key as a prefix, otherwise a zero-byte marker object with an
// undoer that removes it. There is no committer: an S3 "directory" marker
// has no superseded state to purge.
func MakeDir(store ObjectStore, bucket, key string) Action {
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}
	return func(ledger *Ledger) error {
		if err := requireBucket(store, bucket); err != nil {
			return err
		}

		existing, err := store.ListObjects(bucket, key)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}

		newVersion, err := store.PutObject(bucket, key, bytes.NewReader(nil), nil)
		if err != nil {
			return err
		}
		if newVersion == "" {
			return cfnerr.Template("bucket %s must have versioning enabled", bucket)
		}

		ledger.AddUndoer(func() error {
			_, err := store.DeleteObject(bucket, key, newVersion)
			return err
		})
		return nil
	}
}

// ReadAll is a small helper shared by directive handlers that need the
// full content of a local file to compute a hash or upload it.
func ReadAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	return data, nil
}
