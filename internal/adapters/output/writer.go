// Package output provides adapters for writing the build manifest.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
	"github.com/MyCarrier-DevOps/build-prep/internal/infrastructure/config"
)

// BuildKey is the top-level manifest key holding the derived build fields.
const BuildKey = "build"

// manifestFileMode is the permission of written manifests.
const manifestFileMode os.FileMode = 0o644

// BuildSection is the "build" object of the manifest document.
type BuildSection struct {
	TargetRevision string `json:"targetRevision"`
	RepositoryHome string `json:"repositoryHome"`
	DeployTrack    string `json:"deployTrack"`
	UserNamespace  string `json:"userNamespace"`
	AMIName        string `json:"amiName"`
	CorrelationID  string `json:"correlationId,omitempty"`
}

// Writer writes manifests to files on fs, or to out when no path is given.
type Writer struct {
	fs  afero.Fs
	out io.Writer
}

var _ domain.ManifestWriter = (*Writer)(nil)

// NewWriter creates a Writer on the OS filesystem that prints to stdout.
func NewWriter() *Writer {
	return &Writer{fs: afero.NewOsFs(), out: os.Stdout}
}

// NewWriterWithOutput creates a Writer with a custom filesystem and output destination.
// This is useful for testing.
func NewWriterWithOutput(fs afero.Fs, out io.Writer) *Writer {
	return &Writer{fs: fs, out: out}
}

// Document builds the JSON document for m: every pass-through parameter at
// the top level, the resolved coordinates, and the derived fields under "build".
func Document(m *domain.BuildManifest) map[string]any {
	doc := make(map[string]any)
	if m.Config != nil {
		maps.Copy(doc, m.Config.ExtraParams)
		doc[config.KeyBuildWorkspace] = m.Config.BuildWorkspace
		doc[config.KeyRemoteURL] = m.Config.RemoteURL
		doc[config.KeyBranch] = m.Config.Branch
	}
	doc[config.KeyTargetRevision] = m.TargetRevision
	doc[BuildKey] = BuildSection{
		TargetRevision: m.TargetRevision,
		RepositoryHome: m.RepositoryHome,
		DeployTrack:    m.DeployTrack,
		UserNamespace:  m.UserNamespace,
		AMIName:        m.AMIName,
		CorrelationID:  m.CorrelationID,
	}
	return doc
}

// Marshal encodes the manifest document as indented JSON.
func Marshal(m *domain.BuildManifest) ([]byte, error) {
	data, err := json.MarshalIndent(Document(m), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteManifest writes m to path atomically: the document is written to a
// temporary file next to path and renamed into place, so a failed run never
// leaves a partial manifest.
func (w *Writer) WriteManifest(path string, m *domain.BuildManifest) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(w.fs, filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary manifest: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = w.fs.Remove(tmpName)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = w.fs.Remove(tmpName)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := w.fs.Chmod(tmpName, manifestFileMode); err != nil {
		_ = w.fs.Remove(tmpName)
		return fmt.Errorf("failed to set manifest permissions: %w", err)
	}
	if err := w.fs.Rename(tmpName, path); err != nil {
		_ = w.fs.Remove(tmpName)
		return fmt.Errorf("failed to move manifest into place: %w", err)
	}
	return nil
}

// Print writes the manifest document to the output destination.
func (w *Writer) Print(m *domain.BuildManifest) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	_, err = w.out.Write(data)
	return err
}
