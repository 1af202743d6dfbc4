// citrafs mounts a host directory (or a loadable image) as a guest archive
// and runs one filesystem operation against it.
//
// Usage:
//
//	citrafs [flags] MOUNT OP [ARGS]
//
// Operations:
//
//	ls PATH            list a guest directory
//	cat PATH           print a guest file to stdout
//	stat PATH          print a guest file's size
//	write PATH DATA    write DATA at offset 0 (creates the file)
//	mkfile PATH SIZE   create a sparse file of SIZE bytes
//	mkdir PATH         create a guest directory
//	rm PATH            delete a guest file
//	rmdir PATH         delete a guest directory
//	mv SRC DST         rename a guest file
//	free               print the archive's nominal free space
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/afero"

	"github.com/lioncash/citra/config"
	"github.com/lioncash/citra/internal/filesys"
	"github.com/lioncash/citra/internal/loader"
	"github.com/lioncash/citra/internal/service"
	"github.com/lioncash/citra/internal/util"
)

func main() {
	var (
		configPath string
		verbose    int
		filterSpec string
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (yaml or json)")
	flag.IntVar(&verbose, "verbose", config.DefaultVerbose, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", config.DefaultVerbose, "--verbose (shorthand)")
	flag.StringVar(&filterSpec, "filter", "", "Subsystem log filter, e.g. \"Service.FS:debug,*:info\"")
	flag.Parse()

	cfg := config.NewDefaultConfig()
	if configPath != "" {
		fileCfg, err := config.NewConfigFromFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
			os.Exit(1)
		}
		cfg = fileCfg
	}
	cfg.Merge(&config.ConfigOverride{Verbose: &verbose})
	if filterSpec != "" {
		cfg.Merge(&config.ConfigOverride{LogFilter: &filterSpec})
	}

	util.InitializeLogger(cfg.LogLvl)
	rules, err := util.ParseFilterSpec(cfg.LogFilter)
	if err != nil {
		mainLogger := util.GetLogger("Main")
		mainLogger.Fatal().Err(err).Msg("Invalid log filter")
	}
	logger := util.GetFilteredLogger(rules, "Main")

	mount := flag.Arg(0)
	op := flag.Arg(1)
	if mount == "" || op == "" {
		logger.Fatal().Msg("Usage: citrafs [flags] MOUNT OP [ARGS]")
	}

	hostFS := afero.NewOsFs()
	mgr := service.NewManager(util.GetFilteredLogger(rules, "Service.FS"))
	fsLogger := util.GetFilteredLogger(rules, "Service.FS")

	id := service.ArchiveSDMC
	if isDir, _ := afero.DirExists(hostFS, mount); isDir {
		err = mgr.RegisterArchiveType(id, &service.DiskFactory{
			FS:         hostFS,
			MountPoint: mount,
			FreeBytes:  cfg.FreeBytes,
			Logger:     fsLogger,
		})
	} else {
		// Not a directory: treat the mount argument as a loadable image.
		id = service.ArchiveRomFS
		_, err = loader.Load(hostFS, mount, mgr, util.GetFilteredLogger(rules, "Loader"))
	}
	if err != nil {
		logger.Fatal().Str("mount", mount).Err(err).Msg("Failed to set up archive")
	}

	handle, archive, err := mgr.OpenArchive(id)
	if err != nil {
		logger.Fatal().Str("id", id.String()).Err(err).Msg("Failed to open archive")
	}
	defer mgr.Close(handle)

	if err := run(archive, op, flag.Args()[2:]); err != nil {
		logger.Fatal().Str("op", op).Err(err).Msg("Operation failed")
	}
}

func run(archive filesys.ArchiveBackend, op string, args []string) error {
	switch op {
	case "ls":
		return runList(archive, arg(args, 0))
	case "cat":
		return runCat(archive, arg(args, 0))
	case "stat":
		return runStat(archive, arg(args, 0))
	case "write":
		return runWrite(archive, arg(args, 0), arg(args, 1))
	case "mkfile":
		size, err := strconv.ParseUint(arg(args, 1), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", arg(args, 1), err)
		}
		return archive.CreateFile(filesys.NewPath(arg(args, 0)), size)
	case "mkdir":
		return archive.CreateDirectory(filesys.NewPath(arg(args, 0)))
	case "rm":
		return archive.DeleteFile(filesys.NewPath(arg(args, 0)))
	case "rmdir":
		return archive.DeleteDirectory(filesys.NewPath(arg(args, 0)))
	case "mv":
		return archive.RenameFile(filesys.NewPath(arg(args, 0)), filesys.NewPath(arg(args, 1)))
	case "free":
		fmt.Println(archive.GetFreeBytes())
		return nil
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func runList(archive filesys.ArchiveBackend, path string) error {
	dir, err := archive.OpenDirectory(filesys.NewPath(path))
	if err != nil {
		return err
	}
	defer dir.Close()

	entries := make([]filesys.Entry, 16)
	for {
		n := dir.Read(entries)
		if n == 0 {
			return nil
		}
		for _, e := range entries[:n] {
			kind := "file"
			if e.IsDirectory {
				kind = "dir"
			}
			fmt.Printf("%-4s %10d  %s.%s  %s\n", kind, e.Size, e.ShortName[:], e.Extension[:], e.DisplayName())
		}
	}
}

func runCat(archive filesys.ArchiveBackend, path string) error {
	file, err := archive.OpenFile(filesys.NewPath(path), filesys.Mode{Read: true})
	if err != nil {
		return err
	}
	defer file.Close()

	buf := make([]byte, file.GetSize())
	n, err := file.Read(0, buf)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(buf[:n])
	return err
}

func runStat(archive filesys.ArchiveBackend, path string) error {
	file, err := archive.OpenFile(filesys.NewPath(path), filesys.Mode{Read: true})
	if err != nil {
		return err
	}
	defer file.Close()
	fmt.Printf("%s: %d bytes\n", path, file.GetSize())
	return nil
}

func runWrite(archive filesys.ArchiveBackend, path, data string) error {
	file, err := archive.OpenFile(filesys.NewPath(path), filesys.Mode{Write: true, Create: true})
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.Write(0, []byte(data), true)
	return err
}
