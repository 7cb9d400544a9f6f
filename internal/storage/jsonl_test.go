package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"eventScope/internal/model"
)

func TestJsonlStorageAppendsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	store := NewJsonlStorage(path)

	first := []model.LogEvent{
		{Event: "RoleGranted", BlockNumber: 10, Args: []model.Arg{{Name: "account", Type: "address", Value: "0x1"}}},
		{Event: "Transfer", BlockNumber: 12, Timestamp: "3 hours ago"},
	}
	second := []model.LogEvent{{Event: "RoleRevoked", BlockNumber: 15}}

	if err := store.PutEvents(first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := store.PutEvents(nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	if err := store.PutEvents(second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var got []model.LogEvent
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event model.LogEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("unmarshal line %q: %v", scanner.Text(), err)
		}
		got = append(got, event)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	want := append(append([]model.LogEvent{}, first...), second...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestJsonlStorageImplementsStorage(t *testing.T) {
	var _ Storage = NewJsonlStorage("events.jsonl")
}
