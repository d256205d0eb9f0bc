// SPDX-License-Identifier: MPL-2.0

package classroom

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

// lessonMiddleware runs each accepted session's lesson command.
func (s *Server) lessonMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			s.runLesson(sess)
		}
	}
}

// runLesson resolves the session's lesson command to an argv and runs it
// with the learner's terminal attached. An empty command gets the default
// lesson (a REPL).
func (s *Server) runLesson(sess ssh.Session) {
	learner, _ := sess.Context().Value("learner").(string)

	lesson := strings.Join(sess.Command(), " ")
	if lesson == "" {
		lesson = s.cfg.DefaultLesson
	}

	bin, args, err := s.argv(sess.Context(), lesson)
	if err != nil {
		s.logger.Error("failed to resolve lesson command", "learner", learner, "error", err)
		_, _ = fmt.Fprintf(sess.Stderr(), "cannot start lesson: %v\n", err)
		_ = sess.Exit(1)
		return
	}

	s.logger.Info("lesson session started", "learner", learner, "lesson", lesson)

	cmd := exec.CommandContext(sess.Context(), bin, args...)
	cmd.Dir = s.cfg.WorkDir
	cmd.Env = sess.Environ()

	ptyReq, winCh, isPty := sess.Pty()
	if isPty {
		cmd.Env = append(cmd.Env, fmt.Sprintf("TERM=%s", ptyReq.Term))
		s.runLessonPty(sess, cmd, winCh)
		return
	}
	s.runLessonPiped(sess, cmd)
}

// runLessonPty runs the lesson under a server-side pseudo-terminal so REPLs
// and notebooks behave as they would on a local terminal.
func (s *Server) runLessonPty(sess ssh.Session, cmd *exec.Cmd, winCh <-chan ssh.Window) {
	f, err := startLessonPty(cmd)
	if err != nil {
		_, _ = fmt.Fprintf(sess.Stderr(), "cannot allocate terminal: %v\n", err)
		_ = sess.Exit(1)
		return
	}
	defer func() { _ = f.Close() }()

	go func() {
		for win := range winCh {
			resizeLessonPty(f, win.Width, win.Height)
		}
	}()

	go func() {
		_, _ = io.Copy(f, sess)
	}()
	_, _ = io.Copy(sess, f)

	_ = sess.Exit(waitExitCode(cmd))
}

// runLessonPiped streams the lesson through plain pipes; used when the
// client did not request a terminal.
func (s *Server) runLessonPiped(sess ssh.Session, cmd *exec.Cmd) {
	cmd.Stdin = sess
	cmd.Stdout = sess
	cmd.Stderr = sess.Stderr()

	if err := cmd.Start(); err != nil {
		_, _ = fmt.Fprintf(sess.Stderr(), "cannot start lesson: %v\n", err)
		_ = sess.Exit(1)
		return
	}
	_ = sess.Exit(waitExitCode(cmd))
}

// waitExitCode waits for the lesson process and maps failure to an exit
// code; infrastructure errors surface as 1.
func waitExitCode(cmd *exec.Cmd) int {
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		return 1
	}
	return 0
}
