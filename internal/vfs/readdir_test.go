package vfs

import (
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
)

// collectDir drains a directory through repeated ReadDir calls with the
// given per-call byte budget, returning every delivered name in order.
func collectDir(t *testing.T, tbl *Table, dir InodeNumber, size uint64) ([]string, int) {
	t.Helper()

	var names []string
	var calls int
	cookie := uint64(0)
	for {
		entries, err := tbl.ReadDir(dir, size, cookie)
		if err != nil {
			t.Fatalf("readdir: %v", err)
		}
		calls++
		if len(entries) == 0 {
			return names, calls
		}
		for _, e := range entries {
			names = append(names, e.Name)
		}
		cookie = entries[len(entries)-1].NextCookie
	}
}

// A paged enumeration over a stable directory delivers every entry
// exactly once and terminates with an empty reply.
func TestReadDirPaging(t *testing.T) {
	tbl := NewTable(Params{TotalBlocks: testBlocks, TotalInodes: 2048, FilesystemID: 42}, testCreds)

	dir, err := tbl.MkDir(RootInode, "big", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	const total = 1000
	want := make(map[string]bool, total+2)
	want["."] = true
	want[".."] = true
	for i := 0; i < total; i++ {
		name := fmt.Sprintf("entry%04d", i)
		if _, err := tbl.MkNod(dir.Ino, name, 0o644, 0, testCreds); err != nil {
			t.Fatalf("mknod %s: %v", name, err)
		}
		want[name] = true
	}

	// A buffer sized for ~50 entries forces paging.
	perCall := uint64(50 * DirentEncodedSize)
	names, calls := collectDir(t, tbl, dir.Ino, perCall)

	if len(names) != total+2 {
		t.Fatalf("delivered %d names, want %d", len(names), total+2)
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			t.Fatalf("duplicate entry %q", name)
		}
		seen[name] = true
		if !want[name] {
			t.Fatalf("unexpected entry %q", name)
		}
	}

	maxCalls := (total+2)/50 + 2 // ceil plus the terminating empty reply
	if calls > maxCalls {
		t.Errorf("enumeration took %d calls, want <= %d", calls, maxCalls)
	}
}

// Entries that exist for the whole enumeration are delivered exactly
// once even when unrelated names come and go mid-sequence.
func TestReadDirConcurrentMutation(t *testing.T) {
	tbl := newTestTable()

	dir, err := tbl.MkDir(RootInode, "d", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stable := make(map[string]bool)
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("stable%02d", i)
		if _, err := tbl.MkNod(dir.Ino, name, 0o644, 0, testCreds); err != nil {
			t.Fatalf("mknod: %v", err)
		}
		stable[name] = true
	}
	victim := "victim"
	if _, err := tbl.MkNod(dir.Ino, victim, 0o644, 0, testCreds); err != nil {
		t.Fatalf("mknod victim: %v", err)
	}

	// First page: 10 entries.
	perCall := uint64(10 * DirentEncodedSize)
	first, err := tbl.ReadDir(dir.Ino, perCall, 0)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(first) != 10 {
		t.Fatalf("first page has %d entries, want 10", len(first))
	}

	// Mutate between pages: remove the tail entry, add a fresh one.
	if err := tbl.Unlink(dir.Ino, victim); err != nil {
		t.Fatalf("unlink victim: %v", err)
	}
	if _, err := tbl.MkNod(dir.Ino, "latecomer", 0o644, 0, testCreds); err != nil {
		t.Fatalf("mknod latecomer: %v", err)
	}

	seen := make(map[string]bool)
	for _, e := range first {
		seen[e.Name] = true
	}
	cookie := first[len(first)-1].NextCookie
	for {
		entries, err := tbl.ReadDir(dir.Ino, perCall, cookie)
		if err != nil {
			t.Fatalf("readdir: %v", err)
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			if seen[e.Name] {
				t.Fatalf("duplicate entry %q across pages", e.Name)
			}
			seen[e.Name] = true
		}
		cookie = entries[len(entries)-1].NextCookie
	}

	for name := range stable {
		if !seen[name] {
			t.Errorf("stable entry %q never delivered", name)
		}
	}
}

// A buffer too small for even one entry comes back empty so the caller
// can retry with more room.
func TestReadDirTinyBuffer(t *testing.T) {
	tbl := newTestTable()

	entries, err := tbl.ReadDir(RootInode, DirentEncodedSize-1, 0)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("tiny buffer delivered %d entries, want 0", len(entries))
	}

	entries, err = tbl.ReadDir(RootInode, DirentEncodedSize, 0)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("one-entry buffer delivered %d entries, want 1", len(entries))
	}
}

func TestReadDirNotDirectory(t *testing.T) {
	tbl := newTestTable()

	f, _, err := tbl.Create(RootInode, "f", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = tbl.ReadDir(f.Ino, 4096, 0)
	wantErrno(t, err, unix.ENOTDIR)
}
