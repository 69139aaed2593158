package directives

import (
	"net/url"
	"strings"

	"github.com/awsqed/cfn-plus/cfnerr"
)

// ParseS3URI parses "s3://<bucket>/<key>" per spec.md §6's URI grammar,
// stripping a leading '/' on the key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, parseErr := url.Parse(uri)
	if parseErr != nil || u.Scheme != "s3" {
		return "", "", cfnerr.Template("invalid URI: %q", uri)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	return bucket, key, nil
}
