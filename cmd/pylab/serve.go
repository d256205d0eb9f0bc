// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"pylab/internal/classroom"
	"pylab/internal/session"
)

var (
	serveHost     string
	servePort     int
	serveLearners []string
	serveLesson   string
	serveTTL      time.Duration

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Host lesson sessions for remote learners over SSH",
		Long: `Host an SSH classroom server for this workspace.

Each named learner gets a single-use token; they connect with the token
as their password and land in the lesson REPL, running in the same
backend a local session would use. The server stops on Ctrl-C.`,
		Example: `  pylab serve --learner ada --learner grace
  pylab serve --host 0.0.0.0 --port 2222 --lesson "python exercises.py"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serveClassroom(cmd.Context())
		},
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "address to bind")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (0 auto-selects)")
	serveCmd.Flags().StringArrayVar(&serveLearners, "learner", nil, "learner to invite (repeatable)")
	serveCmd.Flags().StringVar(&serveLesson, "lesson", "", "lesson command for connecting learners (default: python REPL)")
	serveCmd.Flags().DurationVar(&serveTTL, "token-ttl", 0, "how long learner tokens stay valid")
}

func serveClassroom(ctx context.Context) error {
	if len(serveLearners) == 0 {
		return fmt.Errorf("at least one --learner is required")
	}

	driver, ws, err := newSessionDriver(ctx)
	if err != nil {
		return err
	}

	cfg := classroom.DefaultConfig()
	cfg.Host = serveHost
	cfg.Port = servePort
	cfg.WorkDir = ws
	if serveLesson != "" {
		cfg.DefaultLesson = serveLesson
	}
	if serveTTL > 0 {
		cfg.TokenTTL = serveTTL
	}

	srv := classroom.New(cfg, func(ctx context.Context, lesson string) (string, []string, error) {
		return driver.LessonCommand(ctx, lesson, session.Options{})
	}, classroom.WithLogger(log.Default()))

	if err := srv.Start(ctx); err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("Classroom open") + SubtitleStyle.Render(" on "+srv.Address()))
	for _, learner := range serveLearners {
		inv, err := srv.Invite(learner)
		if err != nil {
			_ = srv.Stop()
			return err
		}
		fmt.Printf("  %s\n    %s\n    token: %s\n",
			TitleStyle.Render(learner),
			CmdStyle.Render(fmt.Sprintf("ssh -p %d %s@%s", inv.Port, learner, inv.Host)),
			CmdStyle.Render(inv.Token))
	}
	fmt.Println(SubtitleStyle.Render("press Ctrl-C to close the classroom"))

	select {
	case <-ctx.Done():
	case err := <-srv.Err():
		if err != nil {
			_ = srv.Stop()
			return err
		}
	}

	return srv.Stop()
}
