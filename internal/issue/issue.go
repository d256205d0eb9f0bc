// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	EngineUnavailableId Id = iota + 1
	MountRestrictedId
	ImageBuildFailedId
	ContainerNotRunningId
	MicromambaInstallFailedId
	EnvironmentFileNotFoundId
	ConfigLoadFailedId
	ShellNotFoundId
	SyncFailedId
	InvalidBackendId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // links into the pylab docs
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	engineUnavailableIssue = &Issue{
		id: EngineUnavailableId,
		mdMsg: `
# Container engine not reachable!

The container backend was selected but no container engine responded.

## Supported container engines:
- **Podman** (recommended for rootless containers)
- **Docker**

## Things you can try:
- Make sure the engine daemon/service is running:
~~~
$ docker info
$ podman info
~~~

- Install Podman:
  - Linux: ` + "`sudo apt install podman`" + ` or ` + "`sudo dnf install podman`" + `
  - macOS: ` + "`brew install podman`" + `

- Install Docker: https://docs.docker.com/get-docker/

- Skip containers entirely and run in the local managed environment:
~~~
$ pylab run <lesson> --backend localenv
~~~`,
	}

	mountRestrictedIssue = &Issue{
		id: MountRestrictedId,
		mdMsg: `
# Volume mounting is restricted on this host!

The container was created without a shared view of your working files
because bind mounts are not permitted here (common inside application
sandboxes and on remote/managed machines).

Falling back to **copy mode**: your files are copied into the container
and synced back periodically while a session is active.

## What changes for you:
- Edits made on the host reach the container on the next sync tick
- Output files written in the container are pulled back when the session ends

## To force copy mode up front next time:
~~~
$ pylab run <lesson> --copy-mode
~~~`,
	}

	imageBuildFailedIssue = &Issue{
		id: ImageBuildFailedId,
		mdMsg: `
# Learning image build failed!

Building the Python learning image did not complete.

## Common causes:
- No network access while fetching base layers or packages
- A syntax error in a customized Dockerfile
- Disk space exhaustion

## Things you can try:
- Re-run with verbose output:
~~~
$ pylab --verbose env setup
~~~

- Rebuild from scratch, discarding cached layers:
~~~
$ pylab env rebuild
~~~

- If a previously built image exists it will still be used, but it may be
  stale relative to your environment definition.`,
	}

	containerNotRunningIssue = &Issue{
		id: ContainerNotRunningId,
		mdMsg: `
# Learning container is not running!

A command was sent to the container but it is not in a running state.

## Things you can try:
- Check the environment status:
~~~
$ pylab env status
~~~

- Start (or restart) the environment:
~~~
$ pylab env setup
~~~`,
	}

	micromambaInstallFailedIssue = &Issue{
		id: MicromambaInstallFailedId,
		mdMsg: `
# Micromamba installation failed!

pylab could not download or install the micromamba binary that backs the
local managed environment.

## Things you can try:
- Check your network connection; the binary is fetched from micro.mamba.pm
- Retry the setup:
~~~
$ pylab env setup --backend localenv
~~~

- Use the container backend instead:
~~~
$ pylab run <lesson> --backend container
~~~`,
	}

	environmentFileNotFoundIssue = &Issue{
		id: EnvironmentFileNotFoundId,
		mdMsg: `
# environment.yml not found!

The local managed environment is created from an environment.yml file, but
none was found in the expected location.

## Things you can try:
- Create an environment.yml next to your lesson files:
~~~yaml
name: pylab-learning
channels:
  - conda-forge
dependencies:
  - python=3.12
  - pandas
  - matplotlib
~~~

- Or point pylab at one explicitly in your config:
~~~cue
local_env: {
  environment_file: "path/to/environment.yml"
}
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Your pylab config file exists but could not be loaded.

## Common issues:
- Invalid CUE syntax
- Unknown field names
- Invalid values for known fields

## Things you can try:
- Check the error message above for the specific line/column
- Move the file aside to fall back to defaults:
~~~
$ mv ~/.config/pylab/config.cue ~/.config/pylab/config.cue.bak
~~~`,
	}

	shellNotFoundIssue = &Issue{
		id: ShellNotFoundId,
		mdMsg: `
# No usable shell found!

The host-direct backend needs a shell to run lesson commands, but none was
found in PATH.

## Things you can try:
- Install bash (or ensure sh is available)
- Let pylab use its embedded shell interpreter:
~~~
$ pylab run <lesson> --embedded-shell
~~~`,
	}

	syncFailedIssue = &Issue{
		id: SyncFailedId,
		mdMsg: `
# File synchronization failed!

Copying working files between the host and the learning container did not
complete.

## Things you can try:
- Check the environment status:
~~~
$ pylab env status
~~~

- Push the files again manually:
~~~
$ pylab sync push
~~~

- Recreate the container:
~~~
$ pylab env rebuild
~~~`,
	}

	invalidBackendIssue = &Issue{
		id: InvalidBackendId,
		mdMsg: `
# Unknown backend requested!

The --backend flag accepts one of:

- **host**: run directly on the host interpreter
- **localenv**: run inside the micromamba-managed local environment
- **container**: run inside the learning container

Example:
~~~
$ pylab run pandas --backend container
~~~`,
	}

	issues = map[Id]*Issue{
		engineUnavailableIssue.Id():       engineUnavailableIssue,
		mountRestrictedIssue.Id():         mountRestrictedIssue,
		imageBuildFailedIssue.Id():        imageBuildFailedIssue,
		containerNotRunningIssue.Id():     containerNotRunningIssue,
		micromambaInstallFailedIssue.Id(): micromambaInstallFailedIssue,
		environmentFileNotFoundIssue.Id(): environmentFileNotFoundIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		shellNotFoundIssue.Id():           shellNotFoundIssue,
		syncFailedIssue.Id():              syncFailedIssue,
		invalidBackendIssue.Id():          invalidBackendIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
