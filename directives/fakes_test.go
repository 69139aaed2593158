package directives_test

import (
	"io"
	"sort"
	"strconv"
	"strings"
)

// fakeStore is the same hand-written in-memory ObjectStore used by the
// actions package's own tests, reproduced here so directive handlers can
// be exercised end-to-end without a network dependency.
type fakeStore struct {
	versioned map[string]bool
	objects   map[string]map[string][]fakeVersion
	nextID    int
}

type fakeVersion struct {
	id       string
	body     []byte
	metadata map[string]string
	tomb     bool
}

func newFakeStore(versionedBuckets ...string) *fakeStore {
	s := &fakeStore{
		versioned: make(map[string]bool),
		objects:   make(map[string]map[string][]fakeVersion),
	}
	for _, b := range versionedBuckets {
		s.versioned[b] = true
		s.objects[b] = make(map[string][]fakeVersion)
	}
	return s
}

func (s *fakeStore) HeadBucket(bucket string) error {
	if _, ok := s.objects[bucket]; !ok {
		return strconvErr(bucket)
	}
	return nil
}

func strconvErr(bucket string) error {
	return &noSuchBucketError{bucket: bucket}
}

type noSuchBucketError struct{ bucket string }

func (e *noSuchBucketError) Error() string { return "no such bucket: " + e.bucket }

func (s *fakeStore) GetBucketVersioning(bucket string) (bool, error) {
	return s.versioned[bucket], nil
}

func (s *fakeStore) current(bucket, key string) (fakeVersion, bool) {
	versions := s.objects[bucket][key]
	if len(versions) == 0 {
		return fakeVersion{}, false
	}
	last := versions[len(versions)-1]
	if last.tomb {
		return fakeVersion{}, false
	}
	return last, true
}

func (s *fakeStore) StatObject(bucket, key string) (string, map[string]string, bool, error) {
	v, ok := s.current(bucket, key)
	if !ok {
		return "", nil, false, nil
	}
	return v.id, v.metadata, true, nil
}

func (s *fakeStore) PutObject(bucket, key string, body io.ReadSeeker, metadata map[string]string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if !s.versioned[bucket] {
		return "", nil
	}
	s.nextID++
	id := strconv.Itoa(s.nextID)
	s.objects[bucket][key] = append(s.objects[bucket][key], fakeVersion{id: id, body: data, metadata: metadata})
	return id, nil
}

func (s *fakeStore) DeleteObject(bucket, key, versionID string) (string, error) {
	if versionID == "" {
		s.nextID++
		id := strconv.Itoa(s.nextID)
		s.objects[bucket][key] = append(s.objects[bucket][key], fakeVersion{id: id, tomb: true})
		return id, nil
	}
	versions := s.objects[bucket][key]
	for i, v := range versions {
		if v.id == versionID {
			s.objects[bucket][key] = append(versions[:i], versions[i+1:]...)
			return "", nil
		}
	}
	return "", nil
}

func (s *fakeStore) ListObjects(bucket, prefix string) ([]string, error) {
	var keys []string
	for key := range s.objects[bucket] {
		if strings.HasPrefix(key, prefix) {
			if _, ok := s.current(bucket, key); ok {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// fakeProvisioner is a hand-written directives.Provisioner used by tests
// that exercise StackPolicy and sub-stack handling.
type fakeProvisioner struct {
	exports        map[string]string
	policies       map[string]string
	existingParams map[string]map[string]string
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{
		exports:        make(map[string]string),
		policies:       make(map[string]string),
		existingParams: make(map[string]map[string]string),
	}
}

func (p *fakeProvisioner) ListExports() (map[string]string, error) {
	return p.exports, nil
}

func (p *fakeProvisioner) SetStackPolicy(stackName, policyJSON string) error {
	p.policies[stackName] = policyJSON
	return nil
}

func (p *fakeProvisioner) DescribeStackParameters(stackName string) (map[string]string, bool, error) {
	params, ok := p.existingParams[stackName]
	return params, ok, nil
}
