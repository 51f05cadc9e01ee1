// Package environment prepares the process environment for a build workspace.
package environment

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
	"github.com/MyCarrier-DevOps/build-prep/internal/infrastructure/config"
)

// ErrRelativeWorkspace indicates the workspace is not an absolute path.
var ErrRelativeWorkspace = errors.New("build workspace must be an absolute path")

// Preparer derives the build environment from a base environment.
type Preparer struct {
	base map[string]string
}

var _ domain.EnvironmentPreparer = (*Preparer)(nil)

// NewPreparer creates a Preparer inheriting the given os.Environ-style entries.
func NewPreparer(environ []string) *Preparer {
	return &Preparer{base: config.EnvironMap(environ)}
}

// Prepare returns the inherited environment plus BUILD_WORKSPACE and
// REPOSITORY_HOME, the latter being <workspace>/products.
func (p *Preparer) Prepare(workspace string) (domain.Environment, error) {
	if !filepath.IsAbs(workspace) {
		return nil, fmt.Errorf("%w: %s", ErrRelativeWorkspace, workspace)
	}
	workspace = filepath.Clean(workspace)

	env := make(domain.Environment, len(p.base)+2)
	for k, v := range p.base {
		env[k] = v
	}
	env[domain.EnvBuildWorkspace] = workspace
	env[domain.EnvRepositoryHome] = filepath.Join(workspace, domain.WorkingCopyDirName)
	return env, nil
}
