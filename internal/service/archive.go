// Package service owns the process-wide registry of mounted archives. A
// loader registers an archive factory under a fixed archive-type identifier;
// callers open instances through the manager and address them by handle.
package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/lioncash/citra/internal/filesys"
)

// ArchiveID is a fixed archive-type identifier the guest addresses volumes
// by.
type ArchiveID uint32

const (
	ArchiveRomFS          ArchiveID = 0x3
	ArchiveSaveData       ArchiveID = 0x4
	ArchiveExtData        ArchiveID = 0x6
	ArchiveSharedExtData  ArchiveID = 0x7
	ArchiveSystemSaveData ArchiveID = 0x8
	ArchiveSDMC           ArchiveID = 0x9
	ArchiveSDMCWriteOnly  ArchiveID = 0xA
)

func (id ArchiveID) String() string {
	switch id {
	case ArchiveRomFS:
		return "RomFS"
	case ArchiveSaveData:
		return "SaveData"
	case ArchiveExtData:
		return "ExtData"
	case ArchiveSharedExtData:
		return "SharedExtData"
	case ArchiveSystemSaveData:
		return "SystemSaveData"
	case ArchiveSDMC:
		return "SDMC"
	case ArchiveSDMCWriteOnly:
		return "SDMCWriteOnly"
	default:
		return fmt.Sprintf("ArchiveID(%#x)", uint32(id))
	}
}

// Factory produces archive backends for one archive type.
type Factory interface {
	Name() string
	Open() (filesys.ArchiveBackend, error)
}

// Manager maps archive-type identifiers to factories and open archive
// instances to opaque handles. Safe for concurrent use.
type Manager struct {
	factories *xsync.Map[ArchiveID, Factory]
	mounts    *xsync.Map[string, filesys.ArchiveBackend]
	log       zerolog.Logger
}

func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		factories: xsync.NewMap[ArchiveID, Factory](),
		mounts:    xsync.NewMap[string, filesys.ArchiveBackend](),
		log:       logger,
	}
}

// RegisterArchiveType ties a factory to an archive identifier. The first
// registration for an identifier wins; a duplicate is an error.
func (m *Manager) RegisterArchiveType(id ArchiveID, factory Factory) error {
	if _, loaded := m.factories.LoadOrStore(id, factory); loaded {
		return fmt.Errorf("archive type %s already registered", id)
	}
	m.log.Debug().Str("id", id.String()).Str("factory", factory.Name()).Msg("registered archive type")
	return nil
}

// OpenArchive instantiates a backend for the given archive type and returns
// the handle it is addressable by.
func (m *Manager) OpenArchive(id ArchiveID) (string, filesys.ArchiveBackend, error) {
	factory, ok := m.factories.Load(id)
	if !ok {
		return "", nil, fmt.Errorf("no archive type registered for %s", id)
	}
	backend, err := factory.Open()
	if err != nil {
		m.log.Error().Str("id", id.String()).Err(err).Msg("failed to open archive")
		return "", nil, err
	}
	handle := uuid.New().String()
	m.mounts.Store(handle, backend)
	m.log.Info().Str("id", id.String()).Str("handle", handle).Msg("opened archive")
	return handle, backend, nil
}

// Get returns the open archive addressed by handle.
func (m *Manager) Get(handle string) (filesys.ArchiveBackend, bool) {
	return m.mounts.Load(handle)
}

// Close forgets the archive addressed by handle. Reports whether a mount
// was open under it.
func (m *Manager) Close(handle string) bool {
	_, ok := m.mounts.LoadAndDelete(handle)
	return ok
}

// DiskFactory mounts a host directory as an archive.
type DiskFactory struct {
	FS         afero.Fs
	MountPoint string
	FreeBytes  uint64
	Logger     zerolog.Logger
}

var _ Factory = (*DiskFactory)(nil)

func (f *DiskFactory) Name() string { return "DiskArchive" }

func (f *DiskFactory) Open() (filesys.ArchiveBackend, error) {
	isDir, err := afero.DirExists(f.FS, f.MountPoint)
	if err != nil {
		return nil, fmt.Errorf("mount point %s: %w", f.MountPoint, err)
	}
	if !isDir {
		return nil, fmt.Errorf("mount point %s is not a directory", f.MountPoint)
	}
	return filesys.NewDiskArchive(f.FS, f.MountPoint, f.FreeBytes, f.Logger), nil
}
