package actions

import "io"

// ObjectStore is the external collaborator spec.md §6 describes only by
// the interface the core needs: a versioned bucket supporting head, put,
// delete (optionally by version), list-by-prefix, and a versioning probe.
// The concrete AWS-backed implementation lives in store/s3store; tests use
// a hand-written in-memory fake.
type ObjectStore interface {
	// HeadBucket returns nil if bucket exists and is reachable, or an
	// error otherwise (including "bucket does not exist").
	HeadBucket(bucket string) error

	// GetBucketVersioning reports whether versioning is enabled on
	// bucket.
	GetBucketVersioning(bucket string) (enabled bool, err error)

	// StatObject reports the current version id and user metadata of
	// key, without downloading its body. exists is false if key has no
	// current version (never uploaded, or soft-deleted).
	StatObject(bucket, key string) (versionID string, metadata map[string]string, exists bool, err error)

	// PutObject uploads body as a new version of key, carrying metadata
	// as user metadata, and returns the new version's id.
	PutObject(bucket, key string, body io.ReadSeeker, metadata map[string]string) (versionID string, err error)

	// DeleteObject removes a version of key. With versionID == "" it
	// inserts a delete marker (soft delete) and returns the marker's
	// version id. With versionID != "" it permanently deletes that
	// version and returns "".
	DeleteObject(bucket, key, versionID string) (deleteMarkerVersionID string, err error)

	// ListObjects returns the keys of every object under prefix in
	// bucket (current versions only).
	ListObjects(bucket, prefix string) ([]string, error)
}
