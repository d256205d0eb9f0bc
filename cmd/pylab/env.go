// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"pylab/internal/backend"
	"pylab/internal/config"
	"pylab/internal/container"
	"pylab/internal/mamba"
	"pylab/internal/probe"
	"pylab/internal/session"
)

var (
	envBackend    string
	envIsolate    bool
	envCleanImage bool

	envCmd = &cobra.Command{
		Use:   "env",
		Short: "Inspect and manage the learning environments",
	}

	envStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the host probe and the state of each backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return envStatus(cmd.Context())
		},
	}

	envSetupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Prepare the selected backend ahead of the first lesson",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return envSetup(cmd.Context(), false)
		},
	}

	envRebuildCmd = &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the environment or image from scratch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return envSetup(cmd.Context(), true)
		},
	}

	envCleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Remove the learning container and the local environment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return envClean(cmd.Context())
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{envSetupCmd, envRebuildCmd} {
		c.Flags().StringVarP(&envBackend, "backend", "b", "", "force a backend: host, localenv, or container")
		c.Flags().BoolVar(&envIsolate, "isolate", false, "force container isolation without naming a backend")
	}
	envCleanCmd.Flags().BoolVar(&envCleanImage, "image", false, "also remove the learning image")

	envCmd.AddCommand(envStatusCmd)
	envCmd.AddCommand(envSetupCmd)
	envCmd.AddCommand(envRebuildCmd)
	envCmd.AddCommand(envCleanCmd)
}

func envStatus(ctx context.Context) error {
	cfg := loadConfig(ctx)
	ws, err := workspaceDir()
	if err != nil {
		return err
	}

	report := probe.New().Probe(ctx)
	fmt.Println(TitleStyle.Render("Host probe"))
	if len(report.Conflicts) == 0 {
		fmt.Println("  " + SuccessStyle.Render("no conflicts detected"))
	}
	for _, kind := range report.Conflicts {
		style := WarningStyle
		if kind.Blocking() {
			style = ErrorStyle
		}
		fmt.Println("  " + style.Render(string(kind)))
	}
	fmt.Println("  recommended backend: " + CmdStyle.Render(string(report.Recommended)))

	mm := mamba.NewManager(ws, cfg.LocalEnv.EnvName, mamba.WithLogger(log.Default()))
	fmt.Println(TitleStyle.Render("Local environment"))
	if mm.Installed() {
		fmt.Println("  micromamba: " + SuccessStyle.Render("installed") + SubtitleStyle.Render(" ("+mm.BinPath()+")"))
		if mm.EnvExists(ctx) {
			fmt.Println("  environment " + CmdStyle.Render(cfg.LocalEnv.EnvName) + ": " + SuccessStyle.Render("ready"))
		} else {
			fmt.Println("  environment " + CmdStyle.Render(cfg.LocalEnv.EnvName) + ": " + WarningStyle.Render("not created"))
		}
	} else {
		fmt.Println("  micromamba: " + WarningStyle.Render("not installed") + SubtitleStyle.Render(" (pylab env setup installs it)"))
	}

	fmt.Println(TitleStyle.Render("Container"))
	engine, err := container.NewEngine(container.EngineType(cfg.ContainerEngine))
	if err != nil {
		fmt.Println("  engine: " + WarningStyle.Render("unavailable") + SubtitleStyle.Render(" ("+err.Error()+")"))
	} else {
		fmt.Println("  engine: " + SuccessStyle.Render(engine.Name()))
		if running, err := engine.ContainerRunning(ctx, cfg.Container.Name); err == nil && running {
			fmt.Println("  container " + CmdStyle.Render(cfg.Container.Name) + ": " + SuccessStyle.Render("running"))
		} else if exists, err := engine.ContainerExists(ctx, cfg.Container.Name); err == nil && exists {
			fmt.Println("  container " + CmdStyle.Render(cfg.Container.Name) + ": " + WarningStyle.Render("stopped"))
		} else {
			fmt.Println("  container " + CmdStyle.Render(cfg.Container.Name) + ": " + SubtitleStyle.Render("absent"))
		}
	}

	if stateDir, err := config.StateDir(); err == nil {
		if marker, err := backend.LoadMarker(stateDir); err == nil && marker != nil {
			fmt.Println(TitleStyle.Render("Last run"))
			fmt.Println("  backend: " + CmdStyle.Render(string(marker.Backend)))
		}
	}

	return nil
}

func envSetup(ctx context.Context, rebuild bool) error {
	override, err := parseBackendFlag(envBackend)
	if err != nil {
		return err
	}

	driver, _, err := newSessionDriver(ctx)
	if err != nil {
		return err
	}

	if err := driver.Setup(ctx, session.Options{
		Backend: override,
		Isolate: envIsolate,
		Rebuild: rebuild,
	}); err != nil {
		return err
	}

	fmt.Println(SuccessStyle.Render("environment ready"))
	return nil
}

func envClean(ctx context.Context) error {
	cfg := loadConfig(ctx)
	ws, err := workspaceDir()
	if err != nil {
		return err
	}

	// Container first: remove the container (and image with --image).
	if engine, err := container.NewEngine(container.EngineType(cfg.ContainerEngine)); err == nil {
		manager := container.NewManager(engine, container.WithLogger(log.Default()))
		handle := container.NewHandle(cfg.Container.Name, container.ImageTag(cfg.Container.Image), container.MountVolume)
		if adopted, err := manager.Adopt(ctx, handle); err == nil && adopted {
			if err := manager.Teardown(ctx, handle, envCleanImage); err != nil {
				return err
			}
			fmt.Println(SuccessStyle.Render("removed container ") + CmdStyle.Render(cfg.Container.Name))
		}
	}

	// Then the workspace-local micromamba tree.
	mm := mamba.NewManager(ws, cfg.LocalEnv.EnvName)
	if mm.Installed() {
		if err := os.RemoveAll(mm.RootDir()); err != nil {
			return fmt.Errorf("failed to remove local environment: %w", err)
		}
		fmt.Println(SuccessStyle.Render("removed local environment ") + SubtitleStyle.Render(mm.RootDir()))
	}

	return nil
}
