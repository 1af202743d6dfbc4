// Package filesys adapts guest file and directory operations onto a host
// filesystem while keeping the storage semantics the guest expects: 8.3
// short names, a permanently-set archive bit, sparse allocation on creation,
// and structured result codes distinct from host errors.
package filesys

// ArchiveBackend is the set of operations scoped to one mounted volume.
// Every guest path is resolved against the archive's mount root before any
// host call.
type ArchiveBackend interface {
	OpenFile(path Path, mode Mode) (FileBackend, error)
	DeleteFile(path Path) error
	RenameFile(src, dst Path) error
	DeleteDirectory(path Path) error
	CreateFile(path Path, size uint64) error
	CreateDirectory(path Path) error
	RenameDirectory(src, dst Path) error
	OpenDirectory(path Path) (DirectoryBackend, error)
	GetFreeBytes() uint64
}

// FileBackend is a handle to one opened file. The host handle is exclusively
// owned between a successful Open and Close; there is no reopen.
type FileBackend interface {
	Open() error
	Read(offset int64, p []byte) (int, error)
	Write(offset int64, p []byte, flush bool) (int, error)
	GetSize() uint64
	SetSize(size uint64) error
	Close() error
}

// DirectoryBackend is a cursor over a directory's immediate children,
// snapshot at open time. Concurrent host-side mutation after Open is never
// observed.
type DirectoryBackend interface {
	Open() error
	Read(entries []Entry) int
	Close() error
}
