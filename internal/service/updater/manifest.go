package updater

import (
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/service/common"
	"github.com/oshokin/relay-switch/internal/version"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// ManifestFilename is the release manifest inside the update folder.
	ManifestFilename = "relay-switch-version.yaml"

	// MarkerFilename marks that an update is running right now to avoid parallel execution.
	MarkerFilename = "relay-switch-update-marker.bin"

	// DefaultFileMode is applied to updated artifacts.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction is used to calculate artifact hashes.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// baseExecutable is the binary name without platform extension.
	baseExecutable = "relay-switch"
)

var (
	errHashUnavailable = errors.New("hash function unavailable")
	errNoChecksum      = errors.New("checksum missing for file")
	errEmptyManifest   = errors.New("manifest lists no files")
)

// Executable returns the binary name for the current platform.
func Executable() string {
	return baseExecutable + common.ExecutableExtension()
}

// ReleaseFiles returns the artifacts a release ships.
func ReleaseFiles() []string {
	return []string{Executable(), config.DefaultConfigFilename}
}

// Manifest describes a published release.
type Manifest struct {
	// Version is the semantic version of this release.
	Version string `yaml:"version"`
	// Files maps artifact names to their base64-encoded checksums.
	Files map[string]string `yaml:"files"`
}

// NewManifest returns an empty manifest for the running build.
func NewManifest() *Manifest {
	return &Manifest{
		Version: version.Short(),
		Files:   make(map[string]string),
	}
}

// Checksum returns the decoded checksum of name.
func (m *Manifest) Checksum(name string) ([]byte, error) {
	encoded, ok := m.Files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoChecksum, name)
	}

	checksum, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode checksum of %s: %w", name, err)
	}

	return checksum, nil
}

// ParseManifest decodes a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	if len(m.Files) == 0 {
		return nil, errEmptyManifest
	}

	return &m, nil
}

// FileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func FileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	return checksum(contents)
}

func checksum(contents []byte) ([]byte, error) {
	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err := hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}
