package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/prepdeck/prepdeck/internal/app"
	"github.com/prepdeck/prepdeck/internal/exam"
	"github.com/prepdeck/prepdeck/internal/session"
	"github.com/prepdeck/prepdeck/internal/submit"
)

var takeCmd = &cobra.Command{
	Use:   "take <test-id>",
	Short: "Start a timed test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, args[0], false)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <test-id>",
	Short: "Resume an interrupted test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, args[0], true)
	},
}

func runSession(cmd *cobra.Command, testID string, resume bool) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, dbPathFlag(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	var sess exam.Session
	if resume {
		sess, err = a.Manager.ResumeSession(ctx, testID)
	} else {
		sess, err = a.Manager.StartByID(ctx, testID)
	}
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("nothing to resume for test %s (missing or already submitted)", testID)
		}
		return err
	}

	fmt.Printf("%s: %d questions, %s\n", sess.Title, len(sess.QuestionOrder), formatDuration(sess.TimeRemainingSec))
	fmt.Println("Commands: a <answer>  n  p  g <num>  pause  resume  status  submit  quit")

	// Retry queued submissions in the background while the learner works.
	drainDone := make(chan struct{})
	go drainLoop(ctx, a, drainDone)
	defer close(drainDone)

	showCurrent(a)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if _, ok := a.Manager.Active(); !ok {
				break
			}
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "a":
			handleAnswer(ctx, a, strings.TrimSpace(strings.TrimPrefix(line, "a")))
		case "n", "p":
			cur, ok := a.Manager.Active()
			if !ok {
				fmt.Println("No active session.")
				continue
			}
			delta := 1
			if fields[0] == "p" {
				delta = -1
			}
			if err := a.Manager.Navigate(ctx, cur.CurrentIndex+delta); err != nil {
				fmt.Println(errText(err))
				continue
			}
			showCurrent(a)
		case "g":
			if len(fields) < 2 {
				fmt.Println("Usage: g <question-number>")
				continue
			}
			num, convErr := strconv.Atoi(fields[1])
			if convErr != nil {
				fmt.Println("Usage: g <question-number>")
				continue
			}
			if err := a.Manager.Navigate(ctx, num-1); err != nil {
				fmt.Println(errText(err))
				continue
			}
			showCurrent(a)
		case "pause":
			if err := a.Manager.Pause(ctx); err != nil {
				fmt.Println(errText(err))
			} else {
				fmt.Println("Paused. Type 'resume' to continue.")
			}
		case "resume":
			if err := a.Manager.Resume(ctx); err != nil {
				fmt.Println(errText(err))
			} else {
				showCurrent(a)
			}
		case "status":
			answered, total, remaining := a.Manager.Progress()
			fmt.Printf("Answered %d/%d, %s remaining\n", answered, total, formatDuration(remaining))
		case "submit":
			res, err := a.Manager.Submit(ctx)
			if err != nil {
				fmt.Println(errText(err))
				continue
			}
			printResult(res)
			return nil
		case "quit":
			fmt.Println("Leaving without submitting; resume later with 'prepdeck resume'.")
			return a.Manager.Pause(ctx)
		default:
			fmt.Println("Unknown command:", fields[0])
		}

		if _, ok := a.Manager.Active(); !ok {
			// Auto-submit fired while we waited for input.
			if res, err := a.Manager.Submit(ctx); err == nil {
				printResult(res)
			}
			return nil
		}
	}
	return scanner.Err()
}

func handleAnswer(ctx context.Context, a *app.App, input string) {
	sess, ok := a.Manager.Active()
	if !ok {
		fmt.Println("No active session.")
		return
	}
	qid := sess.CurrentQuestionID()
	q, ok := a.Manager.Question(qid)
	if !ok {
		fmt.Println("No current question.")
		return
	}

	var resp exam.Response
	switch q.Type {
	case exam.FillIn, exam.FreeText:
		resp.FreeText = input
	default:
		resp.SelectedOptionIDs = splitSelections(q, input)
		if len(resp.SelectedOptionIDs) == 0 {
			fmt.Println("Pick an option number or id.")
			return
		}
	}

	if err := a.Manager.AnswerQuestion(ctx, qid, resp); err != nil {
		fmt.Println(errText(err))
		return
	}
	answered, total, _ := a.Manager.Progress()
	fmt.Printf("Saved. %d/%d answered.\n", answered, total)
}

// splitSelections maps "2" or "1,3" or raw option ids onto option ids.
func splitSelections(q exam.Question, input string) []string {
	var out []string
	for _, tok := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' }) {
		if n, err := strconv.Atoi(tok); err == nil && n >= 1 && n <= len(q.Options) {
			out = append(out, q.Options[n-1].ID)
			continue
		}
		for _, opt := range q.Options {
			if opt.ID == tok {
				out = append(out, tok)
				break
			}
		}
	}
	return out
}

func showCurrent(a *app.App) {
	sess, ok := a.Manager.Active()
	if !ok {
		return
	}
	qid := sess.CurrentQuestionID()
	q, ok := a.Manager.Question(qid)
	if !ok {
		return
	}

	fmt.Printf("\n[%d/%d] %s\n", sess.CurrentIndex+1, len(sess.QuestionOrder), q.Prompt)
	for i, opt := range q.Options {
		marker := " "
		if rec, ok := a.Manager.Answer(qid); ok {
			for _, sel := range rec.SelectedOptionIDs {
				if sel == opt.ID {
					marker = "*"
				}
			}
		}
		fmt.Printf("  %s %d) %s\n", marker, i+1, opt.Text)
	}
}

// drainLoop retries queued submissions until the session ends.
func drainLoop(ctx context.Context, a *app.App, done <-chan struct{}) {
	t := time.NewTicker(a.Cfg.DrainInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if a.Queue.Len() == 0 {
				continue
			}
			report := a.Queue.DrainOnce(ctx, a.Client)
			for _, f := range report.Failed {
				fmt.Printf("\nSubmission %s permanently failed after %d attempts: %s\n", f.SessionID, f.Attempts, f.LastError)
			}
		}
	}
}

func printResult(res submit.Result) {
	switch res.Status {
	case submit.StatusAccepted:
		fmt.Printf("Submitted. Attempt id: %s\n", res.RemoteID)
	case submit.StatusQueuedOffline:
		fmt.Println("You're offline. Answers saved and queued; run 'prepdeck sync' when back online.")
	case submit.StatusRejected:
		fmt.Println("The server rejected this attempt:", res.Error)
	}
	if res.AutoSubmitted {
		fmt.Println("(time expired, submitted automatically)")
	}
}

func errText(err error) string {
	switch {
	case errors.Is(err, session.ErrIndexOutOfRange):
		return "No such question."
	case errors.Is(err, session.ErrNoActiveSession):
		return "No active session."
	default:
		return "Error: " + err.Error()
	}
}

func formatDuration(sec int) string {
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}
