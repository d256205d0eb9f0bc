// SPDX-License-Identifier: MPL-2.0

package container

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultDockerfile is the learning image recipe used when the workspace does
// not provide its own Dockerfile. The environment name must match the
// activation wrapper the manager prepends to exec commands.
const defaultDockerfile = `FROM mambaorg/micromamba:1.5-bookworm-slim

USER root
RUN apt-get update && apt-get install -y --no-install-recommends \
        ca-certificates \
    && rm -rf /var/lib/apt/lists/*
USER $MAMBA_USER

COPY environment.yml /tmp/environment.yml
RUN micromamba create -y -n pylab-learning -f /tmp/environment.yml \
    && micromamba clean --all --yes

WORKDIR /workspace

CMD ["sleep", "infinity"]
`

// defaultEnvironmentYML seeds a workspace that has no environment file. The
// package set mirrors what an introductory data-analysis curriculum needs.
const defaultEnvironmentYML = `name: pylab-learning
channels:
  - conda-forge
dependencies:
  - python=3.12
  - numpy
  - pandas
  - matplotlib
  - jupyter
  - pip
`

// EnsureBuildContext materializes the Dockerfile and environment file into
// contextDir when the user has not provided their own. Existing files are
// never overwritten. Returns the Dockerfile path relative to contextDir.
func EnsureBuildContext(contextDir string) (string, error) {
	if err := os.MkdirAll(contextDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create build context %s: %w", contextDir, err)
	}

	dockerfile := filepath.Join(contextDir, "Dockerfile")
	if err := writeIfAbsent(dockerfile, defaultDockerfile); err != nil {
		return "", err
	}

	envFile := filepath.Join(contextDir, "environment.yml")
	if err := writeIfAbsent(envFile, defaultEnvironmentYML); err != nil {
		return "", err
	}

	return "Dockerfile", nil
}

func writeIfAbsent(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
