package vfs

import (
	"bytes"
	"testing"

	"golang.org/x/sys/unix"
)

const (
	testBlocks = 1024
	testInodes = 128
)

var testCreds = Credentials{UID: 1000, GID: 1000}

func newTestTable() *Table {
	return NewTable(Params{
		TotalBlocks:  testBlocks,
		TotalInodes:  testInodes,
		FilesystemID: 42,
	}, testCreds)
}

func wantErrno(t *testing.T, err error, want unix.Errno) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", want)
	}
	if got := Errno(err); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestInitRoot(t *testing.T) {
	tbl := newTestTable()

	attr, err := tbl.GetAttr(RootInode)
	if err != nil {
		t.Fatalf("getattr root: %v", err)
	}
	if attr.Mode&typeMask != typeDir {
		t.Errorf("root mode = %o, want directory", attr.Mode)
	}
	if attr.NLink != 3 {
		t.Errorf("root nlink = %d, want 3", attr.NLink)
	}
	if attr.UID != testCreds.UID || attr.GID != testCreds.GID {
		t.Errorf("root owner = %d:%d, want %d:%d", attr.UID, attr.GID, testCreds.UID, testCreds.GID)
	}

	// "." and ".." both point back at the root.
	for _, name := range []string{".", ".."} {
		entry, err := tbl.Lookup(RootInode, name)
		if err != nil {
			t.Fatalf("lookup %q: %v", name, err)
		}
		if entry.Ino != RootInode {
			t.Errorf("lookup %q = %d, want %d", name, entry.Ino, RootInode)
		}
	}

	st := tbl.StatFS()
	if st.BlocksFree != testBlocks {
		t.Errorf("initial f_bfree = %d, want %d", st.BlocksFree, testBlocks)
	}
	// Slot 0 and the root are the only occupants.
	if st.FilesFree != testInodes-2 {
		t.Errorf("initial f_ffree = %d, want %d", st.FilesFree, testInodes-2)
	}
}

// Create a directory and a file, exercise them, then tear both down and
// verify the names are gone.
func TestCreateReadDelete(t *testing.T) {
	tbl := newTestTable()

	dir, err := tbl.MkDir(RootInode, "a", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	file, err := tbl.MkNod(dir.Ino, "f", 0o644, 0, testCreds)
	if err != nil {
		t.Fatalf("mknod: %v", err)
	}

	if _, err := tbl.Write(file.Ino, 0, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := tbl.Read(file.Ino, 0, 5)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte("hello")) {
		t.Fatalf("read = %q, want %q", data, "hello")
	}

	if err := tbl.Unlink(dir.Ino, "f"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	_, err = tbl.Lookup(dir.Ino, "f")
	wantErrno(t, err, unix.ENOENT)

	if err := tbl.RmDir(RootInode, "a"); err != nil {
		t.Fatalf("rmdir: %v", err)
	}
	_, err = tbl.Lookup(RootInode, "a")
	wantErrno(t, err, unix.ENOENT)
}

// An unlinked file stays readable through the kernel's outstanding
// reference; storage is credited back only when forget drains it.
func TestUnlinkWhileOpen(t *testing.T) {
	tbl := newTestTable()
	initialFree := tbl.StatFS().BlocksFree

	entry, fh, err := tbl.Create(RootInode, "f", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tbl.Write(entry.Ino, 0, []byte("X")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := tbl.Unlink(RootInode, "f"); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	data, err := tbl.Read(entry.Ino, 0, 1)
	if err != nil {
		t.Fatalf("read after unlink: %v", err)
	}
	if !bytes.Equal(data, []byte("X")) {
		t.Fatalf("read after unlink = %q, want %q", data, "X")
	}

	// The name is gone even though the body survives.
	_, err = tbl.Lookup(RootInode, "f")
	wantErrno(t, err, unix.ENOENT)

	if err := tbl.Release(fh); err != nil {
		t.Fatalf("release: %v", err)
	}
	tbl.Forget(entry.Ino, 1)

	if free := tbl.StatFS().BlocksFree; free != initialFree {
		t.Errorf("f_bfree after forget = %d, want %d", free, initialFree)
	}
	_, err = tbl.Read(entry.Ino, 0, 1)
	wantErrno(t, err, unix.ENOENT)
}

// Renaming over an existing name drops the old target's last link.
func TestRenameOverwrite(t *testing.T) {
	tbl := newTestTable()

	a, _, err := tbl.Create(RootInode, "a", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, _, err := tbl.Create(RootInode, "b", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	if _, err := tbl.Write(a.Ino, 0, []byte("A")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := tbl.Rename(RootInode, "a", RootInode, "b"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	_, err = tbl.Lookup(RootInode, "a")
	wantErrno(t, err, unix.ENOENT)

	entry, err := tbl.Lookup(RootInode, "b")
	if err != nil {
		t.Fatalf("lookup b: %v", err)
	}
	if entry.Ino != a.Ino {
		t.Fatalf("b now resolves to %d, want %d", entry.Ino, a.Ino)
	}

	data, err := tbl.Read(entry.Ino, 0, 1)
	if err != nil {
		t.Fatalf("read b: %v", err)
	}
	if !bytes.Equal(data, []byte("A")) {
		t.Fatalf("read b = %q, want %q", data, "A")
	}

	// The overwritten inode lost its only name; its attr (still visible
	// through the kernel's reference) shows nlink 0 and forget releases
	// the slot.
	attr, err := tbl.GetAttr(b.Ino)
	if err != nil {
		t.Fatalf("getattr overwritten: %v", err)
	}
	if attr.NLink != 0 {
		t.Errorf("overwritten nlink = %d, want 0", attr.NLink)
	}
	tbl.Forget(b.Ino, 1)
	_, err = tbl.GetAttr(b.Ino)
	wantErrno(t, err, unix.ENOENT)
}

func TestRmdirNonEmpty(t *testing.T) {
	tbl := newTestTable()

	dir, err := tbl.MkDir(RootInode, "d", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, _, err := tbl.Create(dir.Ino, "x", 0o644, testCreds); err != nil {
		t.Fatalf("create: %v", err)
	}

	err = tbl.RmDir(RootInode, "d")
	wantErrno(t, err, unix.ENOTEMPTY)

	if err := tbl.Unlink(dir.Ino, "x"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if err := tbl.RmDir(RootInode, "d"); err != nil {
		t.Fatalf("rmdir after emptying: %v", err)
	}
}

func TestHardLink(t *testing.T) {
	tbl := newTestTable()

	a, _, err := tbl.Create(RootInode, "a", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tbl.Write(a.Ino, 0, []byte("Z")); err != nil {
		t.Fatalf("write: %v", err)
	}

	linked, err := tbl.Link(a.Ino, RootInode, "b")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if linked.Ino != a.Ino {
		t.Fatalf("link ino = %d, want %d", linked.Ino, a.Ino)
	}

	entry, err := tbl.Lookup(RootInode, "b")
	if err != nil {
		t.Fatalf("lookup b: %v", err)
	}
	if entry.Attr.NLink != 2 {
		t.Errorf("nlink after link = %d, want 2", entry.Attr.NLink)
	}

	if err := tbl.Unlink(RootInode, "a"); err != nil {
		t.Fatalf("unlink a: %v", err)
	}

	data, err := tbl.Read(entry.Ino, 0, 1)
	if err != nil {
		t.Fatalf("read via b: %v", err)
	}
	if !bytes.Equal(data, []byte("Z")) {
		t.Fatalf("read via b = %q, want %q", data, "Z")
	}

	after, err := tbl.Lookup(RootInode, "b")
	if err != nil {
		t.Fatalf("lookup b after unlink: %v", err)
	}
	if after.Attr.NLink != 1 {
		t.Errorf("nlink after unlink = %d, want 1", after.Attr.NLink)
	}
}

func TestLinkDirectoryRejected(t *testing.T) {
	tbl := newTestTable()

	dir, err := tbl.MkDir(RootInode, "d", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_, err = tbl.Link(dir.Ino, RootInode, "d2")
	wantErrno(t, err, unix.EPERM)
}

func TestSymlinkRoundTrip(t *testing.T) {
	tbl := newTestTable()

	entry, err := tbl.SymLink("/tmp/x", RootInode, "s", testCreds)
	if err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if entry.Attr.Mode&typeMask != typeLink {
		t.Errorf("symlink mode = %o, want S_IFLNK set", entry.Attr.Mode)
	}
	if entry.Attr.Size != uint64(len("/tmp/x")) {
		t.Errorf("symlink size = %d, want %d", entry.Attr.Size, len("/tmp/x"))
	}

	target, err := tbl.ReadLink(entry.Ino)
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != "/tmp/x" {
		t.Errorf("readlink = %q, want %q", target, "/tmp/x")
	}

	// readlink on a non-symlink is an argument error
	_, err = tbl.ReadLink(RootInode)
	wantErrno(t, err, unix.EINVAL)
}

// Directory link counts follow 2 + number of subdirectories.
func TestDirectoryLinkCounts(t *testing.T) {
	tbl := newTestTable()

	a, err := tbl.MkDir(RootInode, "a", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir a: %v", err)
	}
	if a.Attr.NLink != 2 {
		t.Errorf("fresh dir nlink = %d, want 2", a.Attr.NLink)
	}

	rootAttr, err := tbl.GetAttr(RootInode)
	if err != nil {
		t.Fatalf("getattr root: %v", err)
	}
	if rootAttr.NLink != 4 {
		t.Errorf("root nlink with one subdir = %d, want 4", rootAttr.NLink)
	}

	if _, err := tbl.MkDir(a.Ino, "b", 0o755, testCreds); err != nil {
		t.Fatalf("mkdir a/b: %v", err)
	}
	aAttr, err := tbl.GetAttr(a.Ino)
	if err != nil {
		t.Fatalf("getattr a: %v", err)
	}
	if aAttr.NLink != 3 {
		t.Errorf("a nlink with one subdir = %d, want 3", aAttr.NLink)
	}

	if err := tbl.RmDir(a.Ino, "b"); err != nil {
		t.Fatalf("rmdir a/b: %v", err)
	}
	aAttr, err = tbl.GetAttr(a.Ino)
	if err != nil {
		t.Fatalf("getattr a: %v", err)
	}
	if aAttr.NLink != 2 {
		t.Errorf("a nlink after rmdir = %d, want 2", aAttr.NLink)
	}
}

// Moving a directory between parents shifts the ".." link and rewires
// the child's ".." entry.
func TestRenameDirectoryAcrossParents(t *testing.T) {
	tbl := newTestTable()

	src, err := tbl.MkDir(RootInode, "src", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir src: %v", err)
	}
	dst, err := tbl.MkDir(RootInode, "dst", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir dst: %v", err)
	}
	child, err := tbl.MkDir(src.Ino, "child", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir child: %v", err)
	}

	if err := tbl.Rename(src.Ino, "child", dst.Ino, "child"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	srcAttr, _ := tbl.GetAttr(src.Ino)
	if srcAttr.NLink != 2 {
		t.Errorf("src nlink = %d, want 2", srcAttr.NLink)
	}
	dstAttr, _ := tbl.GetAttr(dst.Ino)
	if dstAttr.NLink != 3 {
		t.Errorf("dst nlink = %d, want 3", dstAttr.NLink)
	}

	dotdot, err := tbl.Lookup(child.Ino, "..")
	if err != nil {
		t.Fatalf("lookup child/..: %v", err)
	}
	if dotdot.Ino != dst.Ino {
		t.Errorf("child/.. = %d, want %d", dotdot.Ino, dst.Ino)
	}
}

// Moving a directory into its own subtree would orphan the loop.
func TestRenameLoopRejected(t *testing.T) {
	tbl := newTestTable()

	a, err := tbl.MkDir(RootInode, "a", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir a: %v", err)
	}
	b, err := tbl.MkDir(a.Ino, "b", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir b: %v", err)
	}

	err = tbl.Rename(RootInode, "a", b.Ino, "a")
	wantErrno(t, err, unix.EINVAL)

	err = tbl.Rename(RootInode, "a", a.Ino, "a2")
	wantErrno(t, err, unix.EINVAL)
}

// rename(2) with both names resolving to the same inode is a no-op.
func TestRenameSameInode(t *testing.T) {
	tbl := newTestTable()

	a, _, err := tbl.Create(RootInode, "a", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tbl.Link(a.Ino, RootInode, "b"); err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := tbl.Rename(RootInode, "a", RootInode, "b"); err != nil {
		t.Fatalf("rename onto own link: %v", err)
	}

	// Both names must still resolve.
	for _, name := range []string{"a", "b"} {
		if _, err := tbl.Lookup(RootInode, name); err != nil {
			t.Errorf("lookup %q after no-op rename: %v", name, err)
		}
	}
}

func TestRenameOverNonEmptyDirectory(t *testing.T) {
	tbl := newTestTable()

	if _, err := tbl.MkDir(RootInode, "a", 0o755, testCreds); err != nil {
		t.Fatalf("mkdir a: %v", err)
	}
	b, err := tbl.MkDir(RootInode, "b", 0o755, testCreds)
	if err != nil {
		t.Fatalf("mkdir b: %v", err)
	}
	if _, _, err := tbl.Create(b.Ino, "x", 0o644, testCreds); err != nil {
		t.Fatalf("create b/x: %v", err)
	}

	err = tbl.Rename(RootInode, "a", RootInode, "b")
	wantErrno(t, err, unix.ENOTEMPTY)
}

// Freed slot numbers are reused FIFO, and a stale number stays dead
// until a new inode occupies the slot.
func TestSlotReclamation(t *testing.T) {
	tbl := newTestTable()

	first, _, err := tbl.Create(RootInode, "f1", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create f1: %v", err)
	}

	if err := tbl.Unlink(RootInode, "f1"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	tbl.Forget(first.Ino, 1)

	_, err = tbl.GetAttr(first.Ino)
	wantErrno(t, err, unix.ENOENT)

	second, _, err := tbl.Create(RootInode, "f2", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create f2: %v", err)
	}
	if second.Ino != first.Ino {
		t.Errorf("reclaimed ino = %d, want %d", second.Ino, first.Ino)
	}
}

func TestWriteENOSPC(t *testing.T) {
	tbl := NewTable(Params{TotalBlocks: 2, TotalInodes: 16, FilesystemID: 1}, testCreds)

	f, _, err := tbl.Create(RootInode, "f", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Two blocks fit.
	if _, err := tbl.Write(f.Ino, 0, make([]byte, 2*BlockSize)); err != nil {
		t.Fatalf("write within capacity: %v", err)
	}

	// The third does not, and the failed write must not grow the file.
	_, err = tbl.Write(f.Ino, 2*BlockSize, []byte("x"))
	wantErrno(t, err, unix.ENOSPC)

	attr, err := tbl.GetAttr(f.Ino)
	if err != nil {
		t.Fatalf("getattr: %v", err)
	}
	if attr.Size != 2*BlockSize {
		t.Errorf("size after ENOSPC = %d, want %d", attr.Size, 2*BlockSize)
	}
}

func TestRegisterENOSPC(t *testing.T) {
	// Slot 0 and the root consume two inodes; one remains.
	tbl := NewTable(Params{TotalBlocks: 8, TotalInodes: 3, FilesystemID: 1}, testCreds)

	if _, _, err := tbl.Create(RootInode, "a", 0o644, testCreds); err != nil {
		t.Fatalf("create a: %v", err)
	}
	_, _, err := tbl.Create(RootInode, "b", 0o644, testCreds)
	wantErrno(t, err, unix.ENOSPC)
}

func TestTruncateAccounting(t *testing.T) {
	tbl := newTestTable()
	initialFree := tbl.StatFS().BlocksFree

	f, _, err := tbl.Create(RootInode, "f", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tbl.Write(f.Ino, 0, make([]byte, 3*BlockSize)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if free := tbl.StatFS().BlocksFree; free != initialFree-3 {
		t.Fatalf("f_bfree after write = %d, want %d", free, initialFree-3)
	}

	attr, err := tbl.SetAttr(f.Ino, Attr{Size: BlockSize / 2}, SetAttrSize)
	if err != nil {
		t.Fatalf("setattr size: %v", err)
	}
	if attr.Size != BlockSize/2 {
		t.Errorf("size after truncate = %d, want %d", attr.Size, BlockSize/2)
	}
	if free := tbl.StatFS().BlocksFree; free != initialFree-1 {
		t.Errorf("f_bfree after shrink = %d, want %d", free, initialFree-1)
	}

	// Growing back must expose zeroes, not stale bytes.
	if _, err := tbl.SetAttr(f.Ino, Attr{Size: BlockSize}, SetAttrSize); err != nil {
		t.Fatalf("setattr grow: %v", err)
	}
	data, err := tbl.Read(f.Ino, BlockSize/2, BlockSize/2)
	if err != nil {
		t.Fatalf("read grown range: %v", err)
	}
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d after regrow = %d, want 0", i, b)
		}
	}
}

func TestForgetClampsAndIgnoresUnknown(t *testing.T) {
	tbl := newTestTable()

	// Forget on a never-allocated number is silently accepted.
	tbl.Forget(9999, 1)

	f, _, err := tbl.Create(RootInode, "f", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tbl.Unlink(RootInode, "f"); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	// Over-draining clamps instead of wrapping.
	tbl.Forget(f.Ino, 100)
	_, err = tbl.GetAttr(f.Ino)
	wantErrno(t, err, unix.ENOENT)

	// And a second forget for the released slot is accepted too.
	tbl.Forget(f.Ino, 1)
}

func TestMkNodRejectsSpecialTypes(t *testing.T) {
	tbl := newTestTable()

	for _, mode := range []uint32{typeChr | 0o644, typeBlk | 0o644, typeFifo | 0o644, typeSock | 0o644} {
		_, err := tbl.MkNod(RootInode, "dev", mode, 0, testCreds)
		wantErrno(t, err, unix.ENOENT)
	}
}

func TestMkdirExisting(t *testing.T) {
	tbl := newTestTable()

	if _, err := tbl.MkDir(RootInode, "d", 0o755, testCreds); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_, err := tbl.MkDir(RootInode, "d", 0o755, testCreds)
	wantErrno(t, err, unix.EEXIST)
}

func TestAccess(t *testing.T) {
	tbl := newTestTable()

	f, _, err := tbl.Create(RootInode, "f", 0o640, testCreds)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cases := []struct {
		name  string
		mask  AccessMask
		creds Credentials
		want  unix.Errno // 0 means success
	}{
		{"owner read-write", ReadOK | WriteOK, testCreds, 0},
		{"owner no exec", ExecOK, testCreds, unix.EACCES},
		{"group read", ReadOK, Credentials{UID: 2000, GID: 1000}, 0},
		{"group no write", WriteOK, Credentials{UID: 2000, GID: 1000}, unix.EACCES},
		{"other denied", ReadOK, Credentials{UID: 2000, GID: 2000}, unix.EACCES},
		{"other existence only", AccessOK, Credentials{UID: 2000, GID: 2000}, 0},
		{"root bypasses", ReadOK | WriteOK | ExecOK, Credentials{}, 0},
	}
	for _, tc := range cases {
		err := tbl.Access(f.Ino, tc.mask, tc.creds)
		if tc.want == 0 {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		wantErrno(t, err, tc.want)
	}
}

func TestHandleLifecycle(t *testing.T) {
	tbl := newTestTable()

	f, _, err := tbl.Create(RootInode, "f", 0o644, testCreds)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fh, err := tbl.Open(f.Ino, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := tbl.Release(fh); err != nil {
		t.Fatalf("release: %v", err)
	}
	err = tbl.Release(fh)
	wantErrno(t, err, unix.EINVAL)

	_, err = tbl.Open(RootInode, 0)
	wantErrno(t, err, unix.EISDIR)

	dh, err := tbl.OpenDir(RootInode)
	if err != nil {
		t.Fatalf("opendir: %v", err)
	}
	if err := tbl.ReleaseDir(dh); err != nil {
		t.Fatalf("releasedir: %v", err)
	}
	_, err = tbl.OpenDir(f.Ino)
	wantErrno(t, err, unix.ENOTDIR)
}
