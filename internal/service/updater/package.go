package updater

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/relay-switch/internal/logger"
)

// PackageOptions contains inputs for manifest creation.
type PackageOptions struct {
	// Dir holds the release artifacts; the manifest is written there too.
	Dir string
	// Files overrides the artifact list. Defaults to ReleaseFiles.
	Files []string
	// UpdateFolder is only used to print where the release must be uploaded.
	UpdateFolder string
}

// Package hashes the release artifacts in opts.Dir and writes the manifest.
func Package(ctx context.Context, opts *PackageOptions) (*Manifest, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "relay-switch-package")

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	files := opts.Files
	if len(files) == 0 {
		files = ReleaseFiles()
	}

	manifest := NewManifest()

	for _, name := range files {
		path := filepath.Join(dir, name)

		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
		} else if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}

		sum, err := FileChecksum(path)
		if err != nil {
			return nil, err
		}

		manifest.Files[name] = base64.StdEncoding.EncodeToString(sum)
	}

	contents, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	manifestPath := filepath.Join(dir, ManifestFilename)
	if err = os.WriteFile(manifestPath, contents, DefaultFileMode); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	logger.InfoKV(ctx, "Manifest written", "path", manifestPath, "version", manifest.Version)
	printNextSteps(ctx, manifest, opts.UpdateFolder)

	return manifest, nil
}

// printNextSteps logs which files to upload.
func printNextSteps(ctx context.Context, manifest *Manifest, updateFolder string) {
	files := make([]string, 0, len(manifest.Files)+1)
	for name := range manifest.Files {
		files = append(files, name)
	}

	files = append(files, ManifestFilename)
	sort.Strings(files)

	if updateFolder == "" {
		updateFolder = "the update folder"
	}

	var builder strings.Builder

	builder.WriteString("Upload the following files to ")
	builder.WriteString(updateFolder)
	builder.WriteString(":\n")
	builder.WriteString(strings.Join(files, ",\n"))
	builder.WriteString("\nThen run on every host: relay-switch self-update")

	logger.Info(ctx, builder.String())
}
