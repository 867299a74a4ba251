package blobstore

import (
	"bytes"
	"context"
	"os"
	"testing"
)

func TestLocalPutGetDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()
	data := []byte("%PDF-1.4 fake body")

	loc, err := store.Put(ctx, "job-1", "report.pdf", data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(loc); err != nil {
		t.Fatalf("blob file missing: %v", err)
	}

	got, err := store.Get(ctx, loc)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Get returned %q, want %q", got, data)
	}

	if err := store.Delete(ctx, loc); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, loc); err == nil {
		t.Fatal("Get succeeded after Delete")
	}

	// Deleting an already gone blob is not an error.
	if err := store.Delete(ctx, loc); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestLocalSeparatesJobs(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	locA, err := store.Put(ctx, "job-a", "a.pdf", []byte("aaa"))
	if err != nil {
		t.Fatalf("Put a: %v", err)
	}
	locB, err := store.Put(ctx, "job-b", "b.pdf", []byte("bbb"))
	if err != nil {
		t.Fatalf("Put b: %v", err)
	}
	if locA == locB {
		t.Fatalf("jobs share location %q", locA)
	}

	got, err := store.Get(ctx, locA)
	if err != nil || string(got) != "aaa" {
		t.Fatalf("Get a = %q, %v", got, err)
	}
}
