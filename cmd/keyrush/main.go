// Package main is an interactive exerciser for the keyrush pipeline:
// it feeds terminal key presses through the conditioning engines and
// shows each decision as it happens.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keyrush/internal/conditioner"
	"github.com/dshills/keyrush/internal/config"
	"github.com/dshills/keyrush/internal/logging"
	"github.com/dshills/keyrush/internal/script"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

type options struct {
	configPath string
	preset     string
	rulePath   string
	logLevel   string
}

func run() int {
	opts, ok := parseFlags()
	if !ok {
		return 0
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(opts.logLevel),
		Output: os.Stderr,
		Prefix: "keyrush",
	})

	profile, err := loadProfile(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	a := &app{
		log:     log,
		profile: profile,
	}
	a.cond = conditioner.New(profile.Conditioner(), log)

	if opts.rulePath != "" {
		source, err := os.ReadFile(opts.rulePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: reading rule: %v\n", err)
			return 1
		}
		rule, err := script.NewRule(string(source))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer rule.Close()
		a.cond.SetRule(rule)
		a.ruleName = opts.rulePath
	}

	if opts.configPath != "" {
		watcher, err := config.Watch(opts.configPath, a.reload, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: watching config: %v\n", err)
			return 1
		}
		defer watcher.Close()
	}

	if err := a.runUI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() (options, bool) {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", "", "Path to a TOML profile (watched for changes)")
	flag.StringVar(&opts.configPath, "c", "", "Path to a TOML profile (shorthand)")
	flag.StringVar(&opts.preset, "preset", "", "Preset profile (default, fps, moba, rts, mmo)")
	flag.StringVar(&opts.rulePath, "rule", "", "Path to a Lua decision rule")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "keyrush - gaming keyboard input conditioning exerciser\n\n")
		fmt.Fprintf(os.Stderr, "Usage: keyrush [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nKeys inside the UI:\n")
		fmt.Fprintf(os.Stderr, "  Esc     quit\n")
		fmt.Fprintf(os.Stderr, "  Ctrl+R  emergency reset\n")
		fmt.Fprintf(os.Stderr, "  any key feed a press/release pair through the pipeline\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("keyrush %s (%s)\n", version, commit)
		return opts, false
	}
	return opts, true
}

// loadProfile resolves the profile from flags: explicit file, then
// preset, then defaults.
func loadProfile(opts options) (*config.Profile, error) {
	if opts.configPath != "" {
		return config.Load(opts.configPath)
	}
	if opts.preset != "" {
		return config.Preset(opts.preset)
	}
	return config.DefaultProfile(), nil
}

// app is the interactive exerciser.
type app struct {
	mu      sync.Mutex
	cond    *conditioner.Conditioner
	profile *config.Profile

	log      *logging.Logger
	ruleName string

	history []string
}

// reload swaps in a freshly configured pipeline when the watched
// profile changes. In-flight state is dropped on purpose: a tuning
// change mid-hold has no meaningful continuation.
func (a *app) reload(profile *config.Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cond.EmergencyReset()
	a.cond = conditioner.New(profile.Conditioner(), a.log)
	a.profile = profile
	a.record(fmt.Sprintf("profile reloaded: %s", profile.Name))
}

func (a *app) runUI() error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	for {
		a.draw(screen)

		ev := screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			screen.Sync()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape {
				return nil
			}
			if ev.Key() == tcell.KeyCtrlR {
				a.mu.Lock()
				a.cond.EmergencyReset()
				a.record("emergency reset")
				a.mu.Unlock()
				continue
			}
			a.feed(keyName(ev))
		}
	}
}

// feed runs a synthesized press/release pair through the pipeline. The
// terminal only reports presses, so the release follows immediately;
// rapid re-pressing the same physical key still exercises the
// velocity-sensitive paths.
func (a *app) feed(name string) {
	if name == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	press := a.cond.Process(conditioner.Event{Key: name, Pressed: true, Timestamp: now})
	a.record(describe(press))

	release := a.cond.Process(conditioner.Event{Key: name, Pressed: false, Timestamp: now.Add(8 * time.Millisecond)})
	if release.Rapid.OppositeRelease != "" {
		a.record(describe(release))
	}
}

// record appends a line to the bounded decision history.
func (a *app) record(line string) {
	a.history = append(a.history, line)
	if len(a.history) > 16 {
		a.history = a.history[len(a.history)-16:]
	}
}

// describe renders one decision as a status line.
func describe(d conditioner.Decision) string {
	verdict := "admitted"
	switch {
	case d.GhostBlocked:
		verdict = "GHOST BLOCKED"
	case !d.Admitted:
		verdict = "suppressed"
	}

	line := fmt.Sprintf("%-8s %-7s %s", d.Key, eventWord(d.Pressed), verdict)
	if d.Rapid.RapidTriggerActive {
		line += fmt.Sprintf("  rapid(reset %v)", d.Rapid.ResetDelay)
	}
	if d.Rapid.OppositeRelease != "" {
		line += fmt.Sprintf("  snap-tap(release %s)", d.Rapid.OppositeRelease)
	}
	if d.Rapid.TurboActive {
		line += "  turbo"
	}
	if d.Rapid.AdaptiveActive {
		line += fmt.Sprintf("  adaptive(x%.2f)", d.Rapid.ResponseMultiplier)
	}
	return line
}

func eventWord(pressed bool) string {
	if pressed {
		return "press"
	}
	return "release"
}

func (a *app) draw(screen tcell.Screen) {
	a.mu.Lock()
	defer a.mu.Unlock()

	screen.Clear()
	style := tcell.StyleDefault
	bold := style.Bold(true)

	row := 0
	emit := func(s tcell.Style, format string, args ...any) {
		drawText(screen, 0, row, s, fmt.Sprintf(format, args...))
		row++
	}

	title := fmt.Sprintf("keyrush  profile=%s", a.profile.Name)
	if a.ruleName != "" {
		title += "  rule=" + a.ruleName
	}
	emit(bold, "%s", title)
	emit(style, "Esc quits, Ctrl+R resets. Type to feed events.")
	row++

	snap := a.cond.Metrics().Snapshot()
	gstats := a.cond.Ghosting().Stats()
	rstats := a.cond.Rapid().Stats()

	emit(bold, "stats")
	emit(style, "  events=%d blocked=%d ghost-prevented=%d avg-latency=%v",
		snap.EventsTotal, snap.BlockedTotal, gstats.GhostingEventsPrevented, snap.AvgLatency)
	emit(style, "  rapid-trigger=%d snap-tap=%d turbo-repeats=%d adaptations=%d",
		rstats.TriggerActivations, rstats.SnapTapConversions, rstats.TurboRepeats, rstats.Adaptations)
	emit(style, "  active=%v", a.cond.ActiveKeys())
	row++

	emit(bold, "decisions")
	for _, line := range a.history {
		emit(style, "  %s", line)
	}

	screen.Show()
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range text {
		screen.SetContent(x+i, y, r, nil, style)
	}
}

// keyName maps a tcell key event to a pipeline key name.
func keyName(ev *tcell.EventKey) string {
	switch ev.Key() {
	case tcell.KeyRune:
		r := ev.Rune()
		if r == ' ' {
			return "space"
		}
		return string(r)
	case tcell.KeyUp:
		return "up"
	case tcell.KeyDown:
		return "down"
	case tcell.KeyLeft:
		return "left"
	case tcell.KeyRight:
		return "right"
	case tcell.KeyTab:
		return "tab"
	case tcell.KeyEnter:
		return "enter"
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return "backspace"
	case tcell.KeyF1, tcell.KeyF2, tcell.KeyF3, tcell.KeyF4, tcell.KeyF5,
		tcell.KeyF6, tcell.KeyF7, tcell.KeyF8, tcell.KeyF9, tcell.KeyF10,
		tcell.KeyF11, tcell.KeyF12:
		return fmt.Sprintf("f%d", int(ev.Key()-tcell.KeyF1)+1)
	default:
		return ""
	}
}
