package actions_test

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// fakeStore is a hand-written in-memory ObjectStore used to test the
// do/undo/commit round-trip properties (spec.md §8) without a network
// dependency. A soft delete appends a version with tomb=true, so
// StatObject can report exists=false while the delete marker still
// occupies a version slot for undo/commit purposes.
type fakeStore struct {
	versioned map[string]bool
	// objects[bucket][key] is an ordered list of versions, oldest first.
	objects map[string]map[string][]fakeVersion
	nextID  int
}

type fakeVersion struct {
	id       string
	body     []byte
	metadata map[string]string
	tomb     bool // true if this version is a delete marker
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
		return fmt.Errorf("no such bucket: %s", bucket)
	}
	return nil
}

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

// snapshot captures the full version history of every bucket/key, for
// before/after comparison in round-trip tests.
func (s *fakeStore) snapshot() string {
	var buf bytes.Buffer
	buckets := make([]string, 0, len(s.objects))
	for b := range s.objects {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)
	for _, b := range buckets {
		keys := make([]string, 0, len(s.objects[b]))
		for k := range s.objects[b] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, v := range s.objects[b][k] {
				fmt.Fprintf(&buf, "%s|%s|tomb=%v|body=%q\n", b, k, v.tomb, v.body)
			}
		}
	}
	return buf.String()
}
