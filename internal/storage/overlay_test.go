package storage

import (
	"bytes"
	"errors"
	"testing"
)

func seedBase(t *testing.T) *MemoryDB {
	t.Helper()
	base := NewMemory()
	base.Put([]byte("a/1"), []byte("one"))
	base.Put([]byte("a/2"), []byte("two"))
	base.Put([]byte("b/1"), []byte("other"))
	return base
}

func snapshot(t *testing.T, db DB) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := db.ForEach(nil, func(key, value []byte) error {
		out[string(key)] = string(value)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach() error: %v", err)
	}
	return out
}

func TestOverlay_ReadThrough(t *testing.T) {
	ov := NewOverlay(seedBase(t))

	got, err := ov.Get([]byte("a/1"))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != "one" {
		t.Errorf("Get() = %q, want %q", got, "one")
	}
	if _, err := ov.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestOverlay_StagedWritesShadowBase(t *testing.T) {
	base := seedBase(t)
	ov := NewOverlay(base)

	ov.Put([]byte("a/1"), []byte("uno"))
	ov.Delete([]byte("a/2"))
	ov.Put([]byte("a/3"), []byte("three"))

	got, _ := ov.Get([]byte("a/1"))
	if string(got) != "uno" {
		t.Errorf("staged Get() = %q, want %q", got, "uno")
	}
	if ok, _ := ov.Has([]byte("a/2")); ok {
		t.Error("Has() = true for staged delete")
	}
	if _, err := ov.Get([]byte("a/2")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) = %v, want ErrNotFound", err)
	}

	var keys []string
	ov.ForEach([]byte("a/"), func(key, value []byte) error {
		keys = append(keys, string(key)+"="+string(value))
		return nil
	})
	want := []string{"a/1=uno", "a/3=three"}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("ForEach() = %v, want %v", keys, want)
	}

	// Base untouched until commit.
	got, _ = base.Get([]byte("a/1"))
	if string(got) != "one" {
		t.Errorf("base changed before Commit(): %q", got)
	}
	if ok, _ := base.Has([]byte("a/3")); ok {
		t.Error("base has staged key before Commit()")
	}
	if ov.Dirty() != 3 {
		t.Errorf("Dirty() = %d, want 3", ov.Dirty())
	}
}

func TestOverlay_Commit(t *testing.T) {
	base := seedBase(t)
	ov := NewOverlay(base)
	ov.Put([]byte("a/1"), []byte("uno"))
	ov.Delete([]byte("a/2"))
	ov.Put([]byte("c/1"), []byte("new"))

	if err := ov.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	want := map[string]string{"a/1": "uno", "b/1": "other", "c/1": "new"}
	got := snapshot(t, base)
	if len(got) != len(want) {
		t.Fatalf("base = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("base[%s] = %q, want %q", k, got[k], v)
		}
	}

	if err := ov.Commit(); !errors.Is(err, ErrOverlayClosed) {
		t.Errorf("second Commit() = %v, want ErrOverlayClosed", err)
	}
	if err := ov.Put([]byte("x"), nil); !errors.Is(err, ErrOverlayClosed) {
		t.Errorf("Put() after Commit() = %v, want ErrOverlayClosed", err)
	}
}

func TestOverlay_DiscardLeavesBaseIdentical(t *testing.T) {
	base := seedBase(t)
	before := snapshot(t, base)

	ov := NewOverlay(base)
	ov.Put([]byte("a/1"), []byte("changed"))
	ov.Delete([]byte("b/1"))
	ov.Put([]byte("z"), []byte("z"))
	ov.Discard()

	after := snapshot(t, base)
	if len(after) != len(before) {
		t.Fatalf("base size changed: %d -> %d", len(before), len(after))
	}
	for k, v := range before {
		if after[k] != v {
			t.Errorf("base[%s] = %q, want %q", k, after[k], v)
		}
	}
}

func TestOverlay_ValueIsolation(t *testing.T) {
	ov := NewOverlay(NewMemory())
	val := []byte("abc")
	ov.Put([]byte("k"), val)
	val[0] = 'x'

	got, _ := ov.Get([]byte("k"))
	if !bytes.Equal(got, []byte("abc")) {
		t.Errorf("staged value aliased caller slice: %q", got)
	}
	got[1] = 'y'
	again, _ := ov.Get([]byte("k"))
	if !bytes.Equal(again, []byte("abc")) {
		t.Errorf("Get() returned aliased slice: %q", again)
	}
}

func TestOverlay_Badger(t *testing.T) {
	base, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer base.Close()
	base.Put([]byte("keep"), []byte("1"))
	base.Put([]byte("drop"), []byte("2"))

	ov := NewOverlay(base)
	ov.Delete([]byte("drop"))
	ov.Put([]byte("add"), []byte("3"))
	if err := ov.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	got := snapshot(t, base)
	if got["keep"] != "1" || got["add"] != "3" {
		t.Errorf("unexpected base after commit: %v", got)
	}
	if _, ok := got["drop"]; ok {
		t.Error("delete not committed to badger")
	}
}
