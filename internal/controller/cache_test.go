package controller

import (
	"errors"
	"testing"

	"github.com/searchforge/creators_proxy/internal/contract"
)

func TestCacheStartsEmpty(t *testing.T) {
	c := NewCache()
	if _, ok := c.Get(); ok {
		t.Fatal("expected empty cache")
	}
	if st := c.Status(); st.Loaded || st.Records != 0 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestCacheSetReplacesSnapshot(t *testing.T) {
	c := NewCache()
	c.Set([]contract.Creator{{"id": "a"}})
	c.Set([]contract.Creator{{"id": "b"}, {"id": "c"}})

	snap, ok := c.Get()
	if !ok {
		t.Fatal("expected populated cache")
	}
	if len(snap.Records) != 2 || snap.Records[0].String("id") != "b" {
		t.Fatalf("unexpected snapshot %+v", snap.Records)
	}
	if snap.FetchedAt.IsZero() {
		t.Fatal("expected fetch time to be set")
	}
}

func TestCacheNilRecordsIsPopulatedEmpty(t *testing.T) {
	c := NewCache()
	c.Set(nil)

	snap, ok := c.Get()
	if !ok {
		t.Fatal("an empty upstream listing still populates the cache")
	}
	if snap.Records == nil || len(snap.Records) != 0 {
		t.Fatalf("expected empty non-nil records, got %#v", snap.Records)
	}
}

func TestCacheRecordErrorKeepsSnapshot(t *testing.T) {
	c := NewCache()
	c.Set([]contract.Creator{{"id": "a"}})
	c.RecordError(errors.New("boom"))

	if _, ok := c.Get(); !ok {
		t.Fatal("error must not clear the snapshot")
	}
	st := c.Status()
	if !st.Loaded || st.LastError == nil || st.ErrorAt.IsZero() {
		t.Fatalf("unexpected status %+v", st)
	}

	c.Set([]contract.Creator{{"id": "b"}})
	if st := c.Status(); st.LastError != nil {
		t.Fatalf("expected error cleared after successful set, got %v", st.LastError)
	}
}
