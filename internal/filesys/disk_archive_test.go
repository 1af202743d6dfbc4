package filesys

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lioncash/citra/internal/result"
)

const testMount = "/archive"

// newTestArchive returns an archive over an in-memory host filesystem.
func newTestArchive(t *testing.T) (*DiskArchive, afero.Fs) {
	t.Helper()
	hostFS := afero.NewMemMapFs()
	require.NoError(t, hostFS.MkdirAll(testMount, 0o755))
	return NewDiskArchive(hostFS, testMount, 0, zerolog.Nop()), hostFS
}

func hostPath(name string) string { return testMount + "/" + name }

func TestOpenFile_MissingWithoutCreate(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	_, err := archive.OpenFile(NewPath("/missing.txt"), Mode{Read: true})

	require.Error(t, err)
	assert.Equal(t, result.DescNotFound, result.CodeOf(err).Description)
}

func TestOpenFile_CreateOnlyModeIsInvalid(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)

	// Invalid regardless of whether the path exists.
	_, err := archive.OpenFile(NewPath("/missing.txt"), Mode{Create: true})
	require.Error(t, err)
	assert.Equal(t, result.DescInvalidOpenFlags, result.CodeOf(err).Description)

	require.NoError(t, afero.WriteFile(hostFS, hostPath("present.txt"), []byte("x"), 0o644))
	_, err = archive.OpenFile(NewPath("/present.txt"), Mode{Create: true})
	require.Error(t, err)
	assert.Equal(t, result.DescInvalidOpenFlags, result.CodeOf(err).Description)
}

func TestOpenFile_DirectoryIsNotAFile(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, hostFS.Mkdir(hostPath("sub"), 0o755))

	_, err := archive.OpenFile(NewPath("/sub"), Mode{Read: true})
	require.Error(t, err)
	assert.Equal(t, result.DescNotAFile, result.CodeOf(err).Description)
}

func TestOpenFile_CreateMakesEmptyFile(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	file, err := archive.OpenFile(NewPath("/new.txt"), Mode{Read: true, Create: true})
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, uint64(0), file.GetSize())
}

func TestCreateFile_EmptyThenZeroSize(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	require.NoError(t, archive.CreateFile(NewPath("/empty.bin"), 0))

	file, err := archive.OpenFile(NewPath("/empty.bin"), Mode{Read: true})
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, uint64(0), file.GetSize())
}

func TestCreateFile_SparseReportsFullSize(t *testing.T) {
	t.Parallel()

	const size = 1 << 16
	archive, _ := newTestArchive(t)
	require.NoError(t, archive.CreateFile(NewPath("/sparse.bin"), size))

	file, err := archive.OpenFile(NewPath("/sparse.bin"), Mode{Read: true})
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, uint64(size), file.GetSize(), "reported size must equal the requested size")
}

func TestCreateFile_SparseOnHostFilesystem(t *testing.T) {
	t.Parallel()

	const size = 4096
	archive := NewDiskArchive(afero.NewOsFs(), t.TempDir(), 0, zerolog.Nop())
	require.NoError(t, archive.CreateFile(NewPath("/sparse.bin"), size))

	file, err := archive.OpenFile(NewPath("/sparse.bin"), Mode{Read: true})
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, uint64(size), file.GetSize())
}

func TestCreateFile_Collisions(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, hostFS.Mkdir(hostPath("sub"), 0o755))
	require.NoError(t, afero.WriteFile(hostFS, hostPath("taken.txt"), []byte("x"), 0o644))

	err := archive.CreateFile(NewPath("/sub"), 10)
	require.Error(t, err)
	assert.Equal(t, result.DescNotAFile, result.CodeOf(err).Description)

	err = archive.CreateFile(NewPath("/taken.txt"), 10)
	require.Error(t, err)
	assert.Equal(t, result.DescAlreadyExists, result.CodeOf(err).Description)
}

func TestDeleteFile(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, hostFS.Mkdir(hostPath("sub"), 0o755))
	require.NoError(t, afero.WriteFile(hostFS, hostPath("gone.txt"), []byte("x"), 0o644))

	err := archive.DeleteFile(NewPath("/sub"))
	require.Error(t, err)
	assert.Equal(t, result.DescNotAFile, result.CodeOf(err).Description, "deleting a directory is a type mismatch")

	err = archive.DeleteFile(NewPath("/missing.txt"))
	require.Error(t, err)
	assert.Equal(t, result.DescNotFound, result.CodeOf(err).Description)

	require.NoError(t, archive.DeleteFile(NewPath("/gone.txt")))
	exists, _ := afero.Exists(hostFS, hostPath("gone.txt"))
	assert.False(t, exists)
}

func TestReadWrite_RoundTrip(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	file, err := archive.OpenFile(NewPath("/data.bin"), Mode{Read: true, Write: true, Create: true})
	require.NoError(t, err)
	defer file.Close()

	written, err := file.Write(0, []byte{0x41, 0x42, 0x43}, false)
	require.NoError(t, err)
	assert.Equal(t, 3, written)

	buf := make([]byte, 3)
	read, err := file.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 3, read)
	assert.Equal(t, []byte{0x41, 0x42, 0x43}, buf)
}

func TestRead_ShortReadAtEOF(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, afero.WriteFile(hostFS, hostPath("small.txt"), []byte("abc"), 0o644))

	file, err := archive.OpenFile(NewPath("/small.txt"), Mode{Read: true})
	require.NoError(t, err)
	defer file.Close()

	buf := make([]byte, 16)
	read, err := file.Read(0, buf)
	require.NoError(t, err, "a short read at end of file is not an error")
	assert.Equal(t, 3, read)

	read, err = file.Read(100, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, read)
}

func TestRead_WriteModeImpliesReadAccess(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, afero.WriteFile(hostFS, hostPath("w.txt"), []byte("abc"), 0o644))

	file, err := archive.OpenFile(NewPath("/w.txt"), Mode{Write: true})
	require.NoError(t, err)
	defer file.Close()

	buf := make([]byte, 3)
	read, err := file.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 3, read)
}

func TestWrite_RequiresWriteMode(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, afero.WriteFile(hostFS, hostPath("ro.txt"), []byte("abc"), 0o644))

	file, err := archive.OpenFile(NewPath("/ro.txt"), Mode{Read: true})
	require.NoError(t, err)
	defer file.Close()

	_, err = file.Write(0, []byte("x"), false)
	require.Error(t, err)
	assert.Equal(t, result.DescInvalidOpenFlags, result.CodeOf(err).Description)
}

func TestWrite_WithFlush(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	file, err := archive.OpenFile(NewPath("/flush.bin"), Mode{Write: true, Create: true})
	require.NoError(t, err)
	defer file.Close()

	written, err := file.Write(4, []byte("data"), true)
	require.NoError(t, err)
	assert.Equal(t, 4, written)
	assert.Equal(t, uint64(8), file.GetSize())
}

func TestSetSize_TruncateAndExtend(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	file, err := archive.OpenFile(NewPath("/resize.bin"), Mode{Write: true, Create: true})
	require.NoError(t, err)
	defer file.Close()

	_, err = file.Write(0, []byte("0123456789"), false)
	require.NoError(t, err)

	require.NoError(t, file.SetSize(4))
	assert.Equal(t, uint64(4), file.GetSize())

	require.NoError(t, file.SetSize(100))
	assert.Equal(t, uint64(100), file.GetSize())
}

func TestRenameFile(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, afero.WriteFile(hostFS, hostPath("old.txt"), []byte("x"), 0o644))

	require.NoError(t, archive.RenameFile(NewPath("/old.txt"), NewPath("/new.txt")))

	oldExists, _ := afero.Exists(hostFS, hostPath("old.txt"))
	newExists, _ := afero.Exists(hostFS, hostPath("new.txt"))
	assert.False(t, oldExists)
	assert.True(t, newExists)

	assert.Error(t, archive.RenameFile(NewPath("/missing.txt"), NewPath("/other.txt")))
}

func TestCreateAndDeleteDirectory(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, archive.CreateDirectory(NewPath("/saves")))

	isDir, _ := afero.DirExists(hostFS, hostPath("saves"))
	assert.True(t, isDir)

	require.NoError(t, archive.DeleteDirectory(NewPath("/saves")))
	isDir, _ = afero.DirExists(hostFS, hostPath("saves"))
	assert.False(t, isDir)
}

func TestRenameDirectory(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, hostFS.Mkdir(hostPath("before"), 0o755))

	require.NoError(t, archive.RenameDirectory(NewPath("/before"), NewPath("/after")))
	isDir, _ := afero.DirExists(hostFS, hostPath("after"))
	assert.True(t, isDir)
}

func TestOpenDirectory_NotADirectory(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, afero.WriteFile(hostFS, hostPath("file.txt"), []byte("x"), 0o644))

	_, err := archive.OpenDirectory(NewPath("/file.txt"))
	assert.Error(t, err)

	_, err = archive.OpenDirectory(NewPath("/missing"))
	assert.Error(t, err)
}

func TestOpenDirectory_ExhaustiveNonRepeating(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	names := []string{"a.txt", "b.txt", "c.txt"}
	for _, name := range names {
		require.NoError(t, afero.WriteFile(hostFS, hostPath(name), []byte("x"), 0o644))
	}

	dir, err := archive.OpenDirectory(NewPath("/"))
	require.NoError(t, err)
	defer dir.Close()

	// Single-entry reads yield each child exactly once.
	seen := map[string]int{}
	buf := make([]Entry, 1)
	for dir.Read(buf) == 1 {
		seen[buf[0].DisplayName()]++
	}
	require.Len(t, seen, len(names))
	for _, name := range names {
		assert.Equal(t, 1, seen[name], "child %s must appear exactly once", name)
	}

	// Exhausted cursors return zero entries forever.
	assert.Equal(t, 0, dir.Read(buf))
	assert.Equal(t, 0, dir.Read(buf))
}

func TestOpenDirectory_SnapshotIgnoresLaterMutation(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, afero.WriteFile(hostFS, hostPath("only.txt"), []byte("x"), 0o644))

	dir, err := archive.OpenDirectory(NewPath("/"))
	require.NoError(t, err)
	defer dir.Close()

	require.NoError(t, afero.WriteFile(hostFS, hostPath("later.txt"), []byte("x"), 0o644))

	buf := make([]Entry, 8)
	assert.Equal(t, 1, dir.Read(buf), "children added after Open are never observed")
}

func TestDirectoryEntries_Attributes(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, afero.WriteFile(hostFS, hostPath("plain.txt"), []byte("abcd"), 0o644))
	require.NoError(t, afero.WriteFile(hostFS, hostPath(".secret"), []byte("x"), 0o644))
	require.NoError(t, hostFS.Mkdir(hostPath("sub"), 0o755))

	dir, err := archive.OpenDirectory(NewPath("/"))
	require.NoError(t, err)
	defer dir.Close()

	byName := map[string]Entry{}
	buf := make([]Entry, 8)
	for {
		n := dir.Read(buf)
		if n == 0 {
			break
		}
		for _, e := range buf[:n] {
			byName[e.DisplayName()] = e
		}
	}
	require.Len(t, byName, 3)

	plain := byName["plain.txt"]
	assert.True(t, plain.IsArchive)
	assert.False(t, plain.IsHidden)
	assert.False(t, plain.IsDirectory)
	assert.Equal(t, uint64(4), plain.Size)
	assert.Equal(t, "PLAIN   ", string(plain.ShortName[:]))
	assert.Equal(t, "TXT", string(plain.Extension[:]))

	hidden := byName[".secret"]
	assert.True(t, hidden.IsHidden)
	assert.True(t, hidden.IsArchive)

	sub := byName["sub"]
	assert.True(t, sub.IsDirectory)
	assert.False(t, sub.IsArchive)
}

func TestResolve_RejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	archive, hostFS := newTestArchive(t)
	require.NoError(t, afero.WriteFile(hostFS, "/outside.txt", []byte("x"), 0o644))

	escaping := []string{"/../outside.txt", "/../../etc/passwd", "/sub/../../outside.txt"}
	for _, guest := range escaping {
		_, err := archive.OpenFile(NewPath(guest), Mode{Read: true})
		require.Error(t, err, "path %s must not resolve outside the mount", guest)
		assert.Equal(t, result.DescInvalidPath, result.CodeOf(err).Description)

		err = archive.DeleteFile(NewPath(guest))
		require.Error(t, err)
		assert.Equal(t, result.DescInvalidPath, result.CodeOf(err).Description)
	}

	// Parent segments that stay inside the mount are fine.
	require.NoError(t, hostFS.Mkdir(hostPath("sub"), 0o755))
	require.NoError(t, afero.WriteFile(hostFS, hostPath("inside.txt"), []byte("x"), 0o644))
	file, err := archive.OpenFile(NewPath("/sub/../inside.txt"), Mode{Read: true})
	require.NoError(t, err)
	file.Close()
}

func TestResolve_RootMountPoint(t *testing.T) {
	t.Parallel()

	// Read-only image mounts sit at the filesystem root.
	hostFS := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(hostFS, "/data.bin", []byte("payload"), 0o644))
	archive := NewDiskArchive(hostFS, "/", 0, zerolog.Nop())

	file, err := archive.OpenFile(NewPath("/data.bin"), Mode{Read: true})
	require.NoError(t, err)
	defer file.Close()

	buf := make([]byte, 7)
	n, err := file.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))

	dir, err := archive.OpenDirectory(NewPath("/"))
	require.NoError(t, err)
	defer dir.Close()
	entries := make([]Entry, 4)
	assert.Equal(t, 1, dir.Read(entries))
}

func TestFileOperations_AfterClose(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	file, err := archive.OpenFile(NewPath("/x.bin"), Mode{Read: true, Write: true, Create: true})
	require.NoError(t, err)
	require.NoError(t, file.Close())

	// Closed is terminal: operations fail cleanly instead of panicking.
	buf := make([]byte, 1)
	_, err = file.Read(0, buf)
	assert.Error(t, err)
	_, err = file.Write(0, []byte("x"), false)
	assert.Error(t, err)
	assert.Error(t, file.SetSize(1))
	assert.Equal(t, uint64(0), file.GetSize())
}

func TestGetFreeBytes_FixedNominalCapacity(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	assert.Equal(t, uint64(DefaultFreeBytes), archive.GetFreeBytes())

	sized := NewDiskArchive(afero.NewMemMapFs(), testMount, 42, zerolog.Nop())
	assert.Equal(t, uint64(42), sized.GetFreeBytes())
}

func TestClose_IsIdempotent(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	file, err := archive.OpenFile(NewPath("/x.bin"), Mode{Write: true, Create: true})
	require.NoError(t, err)

	require.NoError(t, file.Close())
	require.NoError(t, file.Close())
}
