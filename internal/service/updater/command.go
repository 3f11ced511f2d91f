package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/logger"
	"github.com/oshokin/relay-switch/internal/service/common"
	"github.com/oshokin/relay-switch/internal/version"
)

// markerLifetime is the period after which a stale update marker is ignored.
const markerLifetime = 30 * time.Second

var (
	errUpdaterAlreadyRunning = errors.New("the updater is already running")
	errNoUpdateFolder        = errors.New("update folder is not configured")
	errBadHTTPStatus         = errors.New("unexpected http status")
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// UpdateFolder overrides the update folder URL from the settings.
	UpdateFolder string
	// Dir is where the artifacts are installed. Defaults to the folder of
	// the running executable.
	Dir string
	// Restart stops running daemons after the executable was replaced.
	Restart bool
	// HTTPClient overrides the client used for downloads.
	HTTPClient *http.Client
}

// runner holds the state of a single update execution.
type runner struct {
	folder   *url.URL
	dir      string
	client   *http.Client
	manifest *Manifest
}

// Run executes the update lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "relay-switch-update")

	updated, err := Apply(ctx, opts)
	if err != nil {
		logger.ErrorKV(ctx, "Update failed", "error", err)
		return err
	}

	if len(updated) == 0 {
		logger.Info(ctx, "No update required, files are current")
		return nil
	}

	logger.InfoKV(ctx, "Update completed", "files", updated)

	return nil
}

// Apply brings the installed files in line with the published manifest and
// returns the names of the files it replaced.
func Apply(ctx context.Context, opts *Options) ([]string, error) {
	u, err := newRunner(opts)
	if err != nil {
		return nil, err
	}

	markerPath := filepath.Join(u.dir, MarkerFilename)

	if isUpdateRunning(ctx, markerPath) {
		return nil, errUpdaterAlreadyRunning
	}

	if err = os.WriteFile(markerPath, nil, DefaultFileMode); err != nil {
		return nil, fmt.Errorf("create update marker: %w", err)
	}

	defer func() {
		_ = os.Remove(markerPath)
	}()

	logger.InfoKV(ctx, "Downloading the release manifest", "update_folder", u.folder.String())

	if err = u.fetchManifest(ctx); err != nil {
		return nil, fmt.Errorf("download manifest: %w", err)
	}

	if u.manifest.Version != version.Short() {
		logger.InfoKV(ctx, "Version mismatch detected", "local", version.Short(), "remote", u.manifest.Version)
	}

	outdated, err := u.outdatedFiles()
	if err != nil {
		return nil, fmt.Errorf("verify checksums: %w", err)
	}

	for _, name := range outdated {
		if err = u.updateFile(ctx, name); err != nil {
			return nil, fmt.Errorf("update %s: %w", name, err)
		}
	}

	if opts.Restart && len(outdated) > 0 {
		u.restart(ctx)
	}

	return outdated, nil
}

func newRunner(opts *Options) (*runner, error) {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	rawFolder := cfg.UpdateFolder
	if opts.UpdateFolder != "" {
		rawFolder = opts.UpdateFolder
	}

	if rawFolder == "" {
		return nil, errNoUpdateFolder
	}

	folder, err := url.ParseRequestURI(rawFolder)
	if err != nil {
		return nil, fmt.Errorf("invalid update folder: %w", err)
	}

	dir := opts.Dir
	if dir == "" {
		executable, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}

		dir = filepath.Dir(executable)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &runner{
		folder: folder,
		dir:    dir,
		client: client,
	}, nil
}

// fetchManifest downloads and parses the release manifest.
func (u *runner) fetchManifest(ctx context.Context) error {
	data, err := u.download(ctx, ManifestFilename)
	if err != nil {
		return err
	}

	u.manifest, err = ParseManifest(data)

	return err
}

// outdatedFiles lists, in name order, the manifest files whose local
// checksum differs or that are missing locally.
func (u *runner) outdatedFiles() ([]string, error) {
	names := make([]string, 0, len(u.manifest.Files))
	for name := range u.manifest.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	var result []string

	for _, name := range names {
		remote, err := u.manifest.Checksum(name)
		if err != nil {
			return nil, err
		}

		local, err := FileChecksum(u.localPath(name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		if !bytes.Equal(remote, local) {
			result = append(result, name)
		}
	}

	return result, nil
}

// updateFile downloads name and applies it with checksum verification.
func (u *runner) updateFile(ctx context.Context, name string) error {
	logger.InfoKV(ctx, "Updating file", "file", name)

	data, err := u.download(ctx, name)
	if err != nil {
		return err
	}

	sum, err := u.manifest.Checksum(name)
	if err != nil {
		return err
	}

	target := u.localPath(name)

	// The updater renames the current file aside, so it must exist.
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		if err = os.WriteFile(target, nil, DefaultFileMode); err != nil {
			return err
		}
	}

	return goupdate.Apply(bytes.NewReader(data), goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
		Checksum:   sum,
		Hash:       DefaultChecksumFunction,
	})
}

// restart stops running daemons; their supervisor starts the new binary.
func (u *runner) restart(ctx context.Context) {
	killed, err := common.TerminateDaemons(Executable())
	if err != nil {
		logger.WarnKV(ctx, "Unable to stop running daemons", "error", err)
		return
	}

	logger.InfoKV(ctx, "Stopped running daemons", "count", killed)
}

// download fetches a file from the update folder.
func (u *runner) download(ctx context.Context, name string) ([]byte, error) {
	fileURL := *u.folder
	// Use path.Join to normalize duplicate slashes when composing the URL path.
	fileURL.Path = path.Join(fileURL.Path, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL.String(), http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", fileURL.String(), resp.Status, errBadHTTPStatus)
	}

	return io.ReadAll(resp.Body)
}

func (u *runner) localPath(name string) string {
	return filepath.Join(u.dir, filepath.Base(name))
}

// isUpdateRunning reports whether a fresh marker exists. A stale marker is removed.
func isUpdateRunning(ctx context.Context, markerPath string) bool {
	fileInfo, err := os.Stat(markerPath)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	if err != nil {
		logger.WarnKV(ctx, "Unable to read update marker", "error", err)
		return false
	}

	if time.Since(fileInfo.ModTime()) <= markerLifetime {
		return true
	}

	logger.Info(ctx, "The update marker is too old, removing it")

	return os.Remove(markerPath) != nil
}
