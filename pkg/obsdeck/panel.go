package obsdeck

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/bridge"
	"github.com/MixyLabs/obsdeck/pkg/obsdeck/obsws"
	"github.com/MixyLabs/obsdeck/pkg/obsdeck/util"
)

// executables OBS Studio runs as on the supported platforms
var obsExecutables = []string{"obs", "obs64", "obs32", "obs-studio"}

type (
	frameMsg          time.Time
	reconnectMsg      struct{}
	rescanMsg         struct{}
	configReloadedMsg struct{ config Config }
	obsProbeMsg       struct {
		running bool
		err     error
	}
)

// panelBridge is what the panel needs from a bridge.Bridge
type panelBridge interface {
	bridge.Submitter
	PollSnapshot() (bridge.Snapshot, bool)
	PollEvent() (bridge.Event, bool)
}

// panelRecorder counts what the panel does with the bridge
type panelRecorder interface {
	IncSubmitted(cmd bridge.Command)
	IncQueueFull()
	SnapshotApplied(kind bridge.InventoryKind)
}

type nopPanelRecorder struct{}

func (nopPanelRecorder) IncSubmitted(bridge.Command)          {}
func (nopPanelRecorder) IncQueueFull()                        {}
func (nopPanelRecorder) SnapshotApplied(bridge.InventoryKind) {}

// countingSubmitter feeds the recorder on the way into the bridge
type countingSubmitter struct {
	target   bridge.Submitter
	recorder panelRecorder
}

func (s countingSubmitter) TrySubmit(cmd bridge.Command) error {
	if err := s.target.TrySubmit(cmd); err != nil {
		if bridge.IsQueueFullError(err) {
			s.recorder.IncQueueFull()
		}
		return err
	}

	s.recorder.IncSubmitted(cmd)
	return nil
}

// panelSettings is the part of Config the panel reads, refreshed on reload
type panelSettings struct {
	frameInterval time.Duration
	volumeStep    float64
	autoLogin     bool
	login         bridge.LogIn
	preferred     map[bridge.ControlID]string
}

func settingsFromConfig(c Config) panelSettings {
	return panelSettings{
		frameInterval: c.FrameInterval(),
		volumeStep:    c.VolumeStep,
		autoLogin:     c.AutoLogin,
		login:         c.LogIn(),
		preferred: map[bridge.ControlID]string{
			bridge.ControlMic:     c.Controls.Mic,
			bridge.ControlDesktop: c.Controls.Desktop,
		},
	}
}

// panel is the frame-driven control surface. It is the only producer of commands
// and the only consumer of snapshots and events; nothing in Update blocks.
type panel struct {
	logger   *zap.SugaredLogger
	notifier Notifier
	bridge   panelBridge
	recorder panelRecorder
	reloads  <-chan Config
	probe    func() (bool, error)

	coalescer *bridge.Coalescer
	cache     *bridge.Cache
	settings  panelSettings

	keys     keyMap
	formKeys formKeyMap
	help     help.Model
	form     loginForm

	status    bridge.Status
	focus     bridge.ControlID
	warning   string
	width     int
	lastLogIn *bridge.LogIn

	// autoLoginDue is set until the first frame submits the configured LogIn
	autoLoginDue bool
	// loggingIn suppresses the connection-lost notification while a LogIn replaces the session
	loggingIn bool
}

func newPanel(logger *zap.SugaredLogger, b panelBridge, notifier Notifier, recorder panelRecorder, config Config) *panel {
	if recorder == nil {
		recorder = nopPanelRecorder{}
	}

	p := &panel{
		logger:   logger.Named("panel"),
		notifier: notifier,
		bridge:   b,
		recorder: recorder,
		probe:    func() (bool, error) { return util.IsProcessRunning(obsExecutables...) },

		coalescer: bridge.NewCoalescer(countingSubmitter{target: b, recorder: recorder}),
		cache:     bridge.NewCache(),

		keys:     defaultKeyMap,
		formKeys: defaultFormKeyMap,
		help:     help.New(),

		status: bridge.StatusDisconnected,
		focus:  bridge.ControlMic,
	}

	p.applySettings(settingsFromConfig(config))
	p.form = newLoginForm(p.settings.login)
	p.autoLoginDue = p.settings.autoLogin

	p.logger.Debugw("Created panel instance", "autoLogin", p.settings.autoLogin, "frameInterval", p.settings.frameInterval)

	return p
}

// subscribe makes the panel pick up config reloads from ch
func (p *panel) subscribe(ch <-chan Config) {
	p.reloads = ch
}

func (p *panel) applySettings(settings panelSettings) {
	p.settings = settings

	for id, name := range settings.preferred {
		p.cache.Prefer(id, name)
	}
}

func (p *panel) Init() tea.Cmd {
	cmds := []tea.Cmd{p.tick(), p.waitForReload()}
	if !p.settings.autoLogin {
		cmds = append(cmds, p.form.open())
	}

	return tea.Batch(cmds...)
}

func (p *panel) tick() tea.Cmd {
	return tea.Tick(p.settings.frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (p *panel) waitForReload() tea.Cmd {
	if p.reloads == nil {
		return nil
	}

	ch := p.reloads
	return func() tea.Msg {
		config, ok := <-ch
		if !ok {
			return nil
		}
		return configReloadedMsg{config: config}
	}
}

func (p *panel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.help.Width = msg.Width
		return p, nil

	case frameMsg:
		return p, tea.Batch(p.frame(), p.tick())

	case reconnectMsg:
		p.logger.Info("Reconnect requested")
		if p.lastLogIn == nil {
			return p, p.form.open()
		}
		p.submitLogIn(*p.lastLogIn)
		return p, nil

	case rescanMsg:
		p.logger.Info("Re-scan requested")
		p.stage(bridge.Refresh{})
		return p, nil

	case configReloadedMsg:
		p.logger.Debug("Applying reloaded config")
		p.applySettings(settingsFromConfig(msg.config))
		return p, p.waitForReload()

	case obsProbeMsg:
		if msg.err != nil {
			p.logger.Debugw("Failed to look for a running OBS", "error", msg.err)
		} else if !msg.running {
			p.warning += " (OBS does not seem to be running)"
			p.notifier.Notify("Can't connect to OBS", "OBS does not seem to be running. Start it and reconnect from the tray.")
		}
		return p, nil

	case tea.KeyMsg:
		if p.form.visible {
			return p, p.updateForm(msg)
		}
		return p, p.updateMixer(msg)
	}

	return p, nil
}

// frame runs the per-frame bridge work: submit what was staged, take in at most
// one snapshot and one event.
func (p *panel) frame() tea.Cmd {
	if p.autoLoginDue {
		p.autoLoginDue = false
		p.submitLogIn(p.settings.login)
	}

	for _, err := range p.coalescer.Flush() {
		p.logger.Warnw("Command dropped", "error", err)
		p.warning = err.Error()

		var full *bridge.QueueFullError
		if errors.As(err, &full) {
			p.logInDropped(full.Command)
		}
	}

	if snapshot, ok := p.bridge.PollSnapshot(); ok {
		p.cache.Apply(snapshot)
		p.recorder.SnapshotApplied(snapshot.Kind())
	}

	if event, ok := p.bridge.PollEvent(); ok {
		return p.handleEvent(event)
	}

	return nil
}

func (p *panel) handleEvent(event bridge.Event) tea.Cmd {
	switch e := event.(type) {
	case bridge.StatusChanged:
		p.status = e.To
		p.logger.Debugw("Session status changed", "from", e.From, "to", e.To)

		switch e.To {
		case bridge.StatusConnected:
			p.loggingIn = false
			p.warning = ""
		case bridge.StatusFailed:
			p.loggingIn = false
		case bridge.StatusDisconnected:
			if e.From == bridge.StatusConnected && !p.loggingIn {
				p.warning = "connection to OBS lost"
				p.notifier.Notify("Lost connection to OBS", "Reconnect from the tray menu or press ctrl+l.")
			}
		}

	case bridge.CommandFailed:
		p.logger.Warnw("Command failed", "command", e.Command, "error", e.Err)
		p.warning = e.Err.Error()

		switch {
		case bridge.IsConnectError(e.Err):
			if errors.Is(e.Err, obsws.ErrAuthenticationFailed) || errors.Is(e.Err, obsws.ErrPasswordRequired) {
				p.form.err = "OBS rejected the password"
				p.notifier.Notify("Can't log in to OBS", "Check the websocket server password.")
				return p.form.open()
			}
			return p.probeOBS

		case bridge.IsQueryError(e.Err):
			p.notifier.Notify("Failed to read OBS state", e.Err.Error())
		}

	case bridge.CommandDropped:
		p.logger.Debugw("Command dropped by driver", "command", e.Command, "reason", e.Reason)
		p.warning = fmt.Sprintf("%s ignored: %v", e.Command, e.Reason)
		p.logInDropped(e.Command)
	}

	return nil
}

func (p *panel) probeOBS() tea.Msg {
	running, err := p.probe()
	return obsProbeMsg{running: running, err: err}
}

func (p *panel) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, p.formKeys.Quit):
		return tea.Quit

	case key.Matches(msg, p.formKeys.Cancel):
		p.form.close()
		return nil

	case key.Matches(msg, p.formKeys.Next):
		return p.form.focus(p.form.focused + 1)

	case key.Matches(msg, p.formKeys.Prev):
		return p.form.focus(p.form.focused - 1)

	case key.Matches(msg, p.formKeys.Submit):
		login, err := p.form.parse()
		if err != nil {
			p.form.err = err.Error()
			return nil
		}

		p.form.err = ""
		p.form.close()
		p.submitLogIn(login)
		return nil
	}

	return p.form.update(msg)
}

func (p *panel) updateMixer(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, p.keys.Quit):
		return tea.Quit

	case key.Matches(msg, p.keys.Help):
		p.help.ShowAll = !p.help.ShowAll

	case key.Matches(msg, p.keys.Switch):
		if p.focus == bridge.ControlMic {
			p.focus = bridge.ControlDesktop
		} else {
			p.focus = bridge.ControlMic
		}

	case key.Matches(msg, p.keys.PrevSource):
		p.cycleSource(-1)
	case key.Matches(msg, p.keys.NextSource):
		p.cycleSource(1)

	case key.Matches(msg, p.keys.LevelUp):
		p.adjustLevel(p.settings.volumeStep)
	case key.Matches(msg, p.keys.LevelDown):
		p.adjustLevel(-p.settings.volumeStep)
	case key.Matches(msg, p.keys.PageUp):
		p.adjustLevel(levelPageStep)
	case key.Matches(msg, p.keys.PageDown):
		p.adjustLevel(-levelPageStep)

	case key.Matches(msg, p.keys.Mute):
		p.toggleMute()

	case key.Matches(msg, p.keys.Refresh):
		p.stage(bridge.Refresh{})

	case key.Matches(msg, p.keys.Login):
		return p.form.open()
	}

	return nil
}

func (p *panel) stage(cmd bridge.Command) {
	p.coalescer.Stage(cmd)
}

func (p *panel) submitLogIn(login bridge.LogIn) {
	p.logger.Infow("Logging in", "command", login)

	p.lastLogIn = &login
	p.loggingIn = true
	p.stage(login)
}

// logInDropped clears the pending relogin when the LogIn never reached the driver
func (p *panel) logInDropped(cmd bridge.Command) {
	if _, ok := cmd.(bridge.LogIn); ok {
		p.loggingIn = false
	}
}

func (p *panel) cycleSource(delta int) {
	source := p.cache.Cycle(p.focus, delta)
	p.logger.Debugw("Selected source", "control", p.focus, "source", source)
}

// adjustLevel moves the focused strip's level and sends it when it actually changed
func (p *panel) adjustLevel(delta float64) {
	control := p.cache.Control(p.focus)

	source, ok := p.cache.Selected(p.focus)
	if !ok {
		p.warning = fmt.Sprintf("no %s source selected", p.focus)
		return
	}

	level := p.cache.SetLevel(p.focus, control.Level+delta)
	if level == control.Level {
		return
	}

	p.stage(bridge.SetVolume{SourceID: source, LevelPercent: level})
}

func (p *panel) toggleMute() {
	source, ok := p.cache.Selected(p.focus)
	if !ok {
		p.warning = fmt.Sprintf("no %s source selected", p.focus)
		return
	}

	muted := !p.cache.Control(p.focus).Muted
	p.cache.SetMuted(p.focus, muted)
	p.stage(bridge.SetMute{SourceID: source, Muted: muted})
}
