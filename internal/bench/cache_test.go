package bench

import (
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if _, ok, err := ReadCache(dir); ok || err != nil {
		t.Fatalf("ReadCache() on empty dir = ok %v, err %v", ok, err)
	}

	want := CachedScore{Score: 0.1875, Images: 120, Excluded: 2, Threshold: 0.7, BoxFormat: "xyxy"}
	if err := WriteCache(dir, want); err != nil {
		t.Fatalf("WriteCache() error = %v", err)
	}

	got, ok, err := ReadCache(dir)
	if err != nil || !ok {
		t.Fatalf("ReadCache() = ok %v, err %v", ok, err)
	}
	if got != want {
		t.Errorf("ReadCache() = %+v, want %+v", got, want)
	}
}

func TestReadCacheCorrupt(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, CacheFile), "\xff\xff\xff")

	if _, _, err := ReadCache(dir); err == nil {
		t.Error("ReadCache() on corrupt file should fail")
	}
}

func TestReadCacheWithoutBoxFormat(t *testing.T) {
	dir := t.TempDir()
	msg, err := structpb.NewStruct(map[string]any{"score": 0.25, "threshold": 0.7})
	if err != nil {
		t.Fatalf("NewStruct() error = %v", err)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	writeFile(t, filepath.Join(dir, CacheFile), string(data))

	got, ok, err := ReadCache(dir)
	if err != nil || !ok {
		t.Fatalf("ReadCache() = ok %v, err %v", ok, err)
	}
	if got.BoxFormat != "" || got.Score != 0.25 {
		t.Errorf("ReadCache() = %+v, want score 0.25 and no box format", got)
	}
}
