package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/happycapy/rehearsal/chat"
	"github.com/happycapy/rehearsal/clients"
	cfg "github.com/happycapy/rehearsal/config"
	"github.com/happycapy/rehearsal/devices"
	"github.com/happycapy/rehearsal/orchestrator"
	"github.com/happycapy/rehearsal/persona"
	"github.com/happycapy/rehearsal/report"
	"github.com/happycapy/rehearsal/scoring"
)

var (
	accent = lipgloss.Color("#00ff9f")
	muted  = lipgloss.Color("#6e7681")
	alert  = lipgloss.Color("#ff5f87")
)

var runCmd = &cobra.Command{
	Use:   "run [scenario-id]",
	Short: "Start an interactive session",
	Long: `Start an interactive rehearsal session.

Type a line to speak it. Commands:
  /mic <clip.wav>  transcribe a recorded clip and submit it
  /pause           pause the group discussion
  /resume          resume the group discussion
  /retry           resend the last failed request
  /stop            stop speaking and listening
  /report          export the performance report
  /quit            leave the session`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, log, err := loadConfig()
		if err != nil {
			return err
		}
		id := conf.Session.Scenario
		if len(args) == 1 {
			id = args[0]
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, conf, log, id, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func newEndpoint(ctx context.Context, conf *cfg.Root, h *clients.HTTP, log logrus.FieldLogger) (chat.Endpoint, error) {
	switch conf.Chat.Backend {
	case "gemini":
		return clients.NewGemini(ctx, conf.Chat.APIKey, conf.Chat.Model, log)
	default:
		return clients.NewChatHTTP(h, conf.Chat.URL, log), nil
	}
}

func run(ctx context.Context, conf *cfg.Root, log *logrus.Logger, id string, in io.Reader, out io.Writer) error {
	catalog, err := loadCatalog(conf)
	if err != nil {
		return err
	}
	scn, err := catalog.Get(id)
	if err != nil {
		return err
	}

	h := clients.NewHTTP(conf.Chat.Timeout)
	endpoint, err := newEndpoint(ctx, conf, h, log)
	if err != nil {
		return err
	}

	dev := orchestrator.Devices{
		Endpoint:    endpoint,
		Synthesizer: devices.NewConsole(out, devices.WithWordsPerMinute(conf.Speech.WordsPerMinute), devices.WithVoiceDelay(conf.Speech.VoiceDelay)),
		Microphone:  devices.NewMicrophone(conf.Speech.Microphone),
	}
	var recognizer *devices.RemoteRecognizer
	if conf.Speech.ASRURL != "" {
		recognizer = devices.NewRemoteRecognizer(clients.NewASR(h, conf.Speech.ASRURL), log)
		dev.Recognizer = recognizer
	}

	seed := conf.Session.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	ui := newConsoleUI(out)
	lex := conf.Scoring
	sess, err := orchestrator.New(scn, dev, orchestrator.Options{
		Locale:    conf.Speech.Locale,
		Seed:      seed,
		Scheduler: conf.Scheduler,
		Lexicon:   &lex,
		Hooks:     ui.hooks(),
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer sess.Close()
	ui.cast = sess.Cast()

	ui.banner(scn.Title, scn.Description)
	if err := sess.Start(ctx); err != nil && !isSurfaced(err) {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handle(ctx, sess, recognizer, conf, ui, line)
			if err != nil && !isSurfaced(err) {
				ui.problem(err.Error())
			}
			if quit {
				return nil
			}
		}
	}
}

// isSurfaced reports whether the session already showed err through its hooks.
func isSurfaced(err error) bool {
	var e *orchestrator.Error
	return errors.As(err, &e)
}

func handle(ctx context.Context, sess *orchestrator.Session, rec *devices.RemoteRecognizer, conf *cfg.Root, ui *consoleUI, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		if line == "" {
			return false, nil
		}
		return false, sess.Submit(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/pause":
		sess.Pause()
		ui.note("discussion paused")
	case "/resume":
		sess.Resume()
		ui.note("discussion resumed")
	case "/retry":
		return false, sess.Retry(ctx)
	case "/stop":
		sess.StopSpeaking()
		sess.StopListening()
	case "/mic":
		if rec == nil {
			return false, errors.New("no speech recognizer configured (set speech.asr_url)")
		}
		if arg = strings.TrimSpace(arg); arg == "" {
			return false, errors.New("usage: /mic <clip.wav>")
		}
		rec.Queue(arg)
		return false, sess.Listen(ctx)
	case "/report":
		b := report.Build(sess.Report())
		path, err := report.Write(conf.Paths.Outputs, b)
		if err != nil {
			return false, err
		}
		ui.report(b, path)
	default:
		return false, fmt.Errorf("unknown command %s", cmd)
	}
	return false, nil
}

type consoleUI struct {
	out   io.Writer
	cast  *persona.Cast
	title lipgloss.Style
	dim   lipgloss.Style
	bad   lipgloss.Style
	label lipgloss.Style
}

func newConsoleUI(out io.Writer) *consoleUI {
	return &consoleUI{
		out:   out,
		title: lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1),
		dim:   lipgloss.NewStyle().Foreground(muted),
		bad:   lipgloss.NewStyle().Bold(true).Foreground(alert),
		label: lipgloss.NewStyle().Bold(true).Foreground(accent),
	}
}

func (u *consoleUI) hooks() orchestrator.Hooks {
	return orchestrator.Hooks{
		OnSpeaker: func(name string) {
			glyph := ""
			if u.cast != nil {
				if m, ok := u.cast.Lookup(name); ok {
					glyph = m.Emoji + " "
				}
			}
			fmt.Fprintln(u.out, u.label.Render(glyph+name))
		},
		OnStats: func(s scoring.Stats) {
			fmt.Fprintln(u.out, u.dim.Render(fmt.Sprintf(
				"confidence %d · engagement %d · coherence %d · fillers %d",
				s.Confidence, s.Engagement, s.Coherence, s.FillerWords)))
		},
		OnError: func(e *orchestrator.Error) {
			u.problem(e.Message)
		},
	}
}

func (u *consoleUI) banner(title, desc string) {
	fmt.Fprintln(u.out, u.title.Render(title))
	fmt.Fprintln(u.out, u.dim.Render(desc))
	fmt.Fprintln(u.out)
}

func (u *consoleUI) note(msg string) { fmt.Fprintln(u.out, u.dim.Render(msg)) }

func (u *consoleUI) problem(msg string) { fmt.Fprintln(u.out, u.bad.Render("! "+msg)) }

func (u *consoleUI) report(b report.Bundle, path string) {
	fmt.Fprintln(u.out, u.title.Render(fmt.Sprintf("Overall %d (%s)", b.OverallScore, b.Rating)))
	for _, line := range b.Insights {
		fmt.Fprintln(u.out, "  • "+line)
	}
	fmt.Fprintln(u.out, u.dim.Render("saved "+path))
}
