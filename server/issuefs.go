package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/brettbedarf/issuefs"
	"github.com/brettbedarf/issuefs/config"
	"github.com/brettbedarf/issuefs/filesystem"
	wfuse "github.com/brettbedarf/issuefs/fuse"
	"github.com/brettbedarf/issuefs/internal/util"
	"github.com/brettbedarf/issuefs/store"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hashicorp/go-multierror"
)

// IssueFS ties the engine, the persistent store and the FUSE server together
// for one mount
type IssueFS struct {
	*filesystem.FileSystem
	cfg      *config.Config
	registry *issuefs.Registry
	store    *store.Store
	versions []issuefs.VersionInfo
	mount    string
	server   mountServer
	done     chan struct{}
}

// mountServer is the part of *fuse.Server used after mounting
type mountServer interface {
	Unmount() error
}

// New creates an IssueFS instance given your config and tracker registry.
// Trackers are probed once here, bounded by cfg.ProbeTimeout.
func New(cfg *config.Config, reg *issuefs.Registry) *IssueFS {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if reg == nil {
		reg = issuefs.NewRegistry(nil)
	}
	versions := issuefs.ProbeVersions(context.Background(), reg, cfg.ProbeTimeout)
	return &IssueFS{
		FileSystem: filesystem.NewFS(reg, versions),
		cfg:        cfg,
		registry:   reg,
		store:      store.New(cfg.StorePath),
		versions:   versions,
	}
}

// Versions returns the tracker probe results taken at startup
func (fs *IssueFS) Versions() []issuefs.VersionInfo {
	return fs.versions
}

// Serve restores the saved folders of mountPoint and mounts the filesystem there.
func (fs *IssueFS) Serve(mountPoint string) error {
	logger := util.GetLogger("Server.Serve")

	mnt, err := filepath.Abs(mountPoint)
	if err != nil {
		return fmt.Errorf("resolve mount point: %w", err)
	}
	fs.mount = mnt

	saved, err := fs.store.Load(mnt)
	if err != nil {
		logger.Warn().Err(err).Str("store", fs.store.Path()).Msg("Could not load saved folders")
	}
	if err := fs.LoadFolders(saved, fs.cfg.RefreshOnMount); err != nil {
		logger.Warn().Err(err).Msg("Some saved folders were not restored")
	}

	raw := wfuse.NewFuseRaw(fs.FileSystem, wfuse.Options{
		AttrTimeout:  seconds(fs.cfg.AttrTimeout),
		EntryTimeout: seconds(fs.cfg.EntryTimeout),
		DirectIO:     fs.cfg.DirectIO,
	})
	opts := fs.cfg.MountOptions
	slogger := util.NewLogLogger("FuseServer", util.TraceLevel)
	srv, err := fuse.NewServer(raw, mnt, &fuse.MountOptions{
		Name:           opts.Name,
		FsName:         opts.FsName,
		Debug:          opts.Debug || fs.cfg.LogLvl == util.TraceLevel,
		Logger:         slogger,
		SingleThreaded: true,
	})
	if err != nil {
		return err
	}
	fs.server = srv
	fs.done = make(chan struct{})

	go func() {
		srv.Serve()
		close(fs.done)
	}()
	return srv.WaitMount()
}

func (fs *IssueFS) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- fs.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Done is closed once the kernel connection ends, i.e. after an external
// fusermount -u. It is nil before Serve.
func (fs *IssueFS) Done() <-chan struct{} {
	return fs.done
}

// Save writes the persistent folders of this mount to the store
func (fs *IssueFS) Save() error {
	if fs.mount == "" {
		return nil
	}
	return fs.store.Save(fs.mount, fs.Folders())
}

// Unmount unmounts the filesystem and saves persistent folders. The save is
// attempted even when unmounting fails; both failures are returned.
func (fs *IssueFS) Unmount() error {
	logger := util.GetLogger("Server.Unmount")

	if fs.server == nil {
		return nil
	}
	var errs *multierror.Error
	select {
	case <-fs.done:
		logger.Debug().Str("mnt", fs.mount).Msg("Already unmounted")
	default:
		if err := fs.server.Unmount(); err != nil {
			logger.Warn().Err(err).Str("mnt", fs.mount).Msg("Unmount failed; saving folders anyway")
			errs = multierror.Append(errs, fmt.Errorf("unmount: %w", err))
		}
	}
	if err := fs.Save(); err != nil {
		logger.Error().Err(err).Str("store", fs.store.Path()).Msg("Could not save folders")
		errs = multierror.Append(errs, fmt.Errorf("save: %w", err))
	}
	return errs.ErrorOrNil()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
