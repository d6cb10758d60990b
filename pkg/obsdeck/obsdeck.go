// Package obsdeck provides a terminal control panel for OBS Studio's audio mixer.
// The panel talks to OBS through a session bridge, so the UI never waits on the network.
package obsdeck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/bridge"
	"github.com/MixyLabs/obsdeck/pkg/obsdeck/metrics"
	"github.com/MixyLabs/obsdeck/pkg/obsdeck/obsws"
	"github.com/MixyLabs/obsdeck/pkg/obsdeck/util"
)

const mutexName = "obsdeck"

// Options are the command line switches that shape an Obsdeck
type Options struct {
	Verbose    bool
	ConfigPath string
	NoTray     bool
}

// Obsdeck is the main entity managing all subcomponents
type Obsdeck struct {
	logger    *zap.SugaredLogger
	notifier  *ToastNotifier
	configMan *ConfigManager
	metrics   *metrics.Metrics
	bridge    *bridge.Bridge
	panel     *panel
	program   *tea.Program
	mutex     *util.Mutex

	cancel   context.CancelFunc
	workers  sync.WaitGroup
	stopOnce sync.Once

	runningWithTray bool
	stopChannel     chan bool
	version         string
	opts            Options
}

func NewObsdeck(logger *zap.SugaredLogger, opts Options) (*Obsdeck, error) {
	logger = logger.Named("obsdeck")

	notifier, err := NewToastNotifier(logger)
	if err != nil {
		logger.Errorw("Failed to create ToastNotifier", "error", err)
		return nil, fmt.Errorf("create new ToastNotifier: %w", err)
	}

	config, err := NewConfig(logger, notifier, opts.ConfigPath)
	if err != nil {
		logger.Errorw("Failed to create Config", "error", err)
		return nil, fmt.Errorf("create new Config: %w", err)
	}

	d := &Obsdeck{
		logger:      logger,
		notifier:    notifier,
		configMan:   config,
		metrics:     metrics.New(),
		stopChannel: make(chan bool, 1),
		opts:        opts,
	}

	logger.Debug("Created obsdeck instance")

	return d, nil
}

// Initialize sets up components and runs until stopped
func (d *Obsdeck) Initialize() error {
	d.logger.Debug("Initializing")

	// load the config for the first time
	if err := d.configMan.Load(); err != nil {
		d.logger.Errorw("Failed to load config during initialization", "error", err)
		return fmt.Errorf("load config during init: %w", err)
	}

	current := d.configMan.Current()
	d.notifier.SetMuted(current.DisableNotifications)

	if err := util.EnsureDirExists(logDirectory); err != nil {
		return fmt.Errorf("ensure log dir exists: %w", err)
	}

	mutex, err := util.CreateMutex(logDirectory, mutexName)
	if err != nil {
		d.logger.Errorw("Failed to take single instance lock", "error", err)
		if errors.Is(err, util.ErrAlreadyRunning) {
			d.notifier.Notify("obsdeck is already running", "Only one panel can drive OBS at a time.")
		}
		return fmt.Errorf("create mutex: %w", err)
	}
	d.mutex = mutex

	bridgeOpts, err := current.BridgeOptions()
	if err != nil {
		return fmt.Errorf("build bridge options: %w", err)
	}
	bridgeOpts.Recorder = d.metrics

	d.bridge = bridge.New(d.logger, obsws.NewDialer(d.logger), bridgeOpts)

	d.panel = newPanel(d.logger, d.bridge, d.notifier, d.metrics, current)
	d.panel.subscribe(d.configMan.SubscribeToChanges())
	d.program = tea.NewProgram(d.panel, tea.WithAltScreen())

	d.setupInterruptHandler()
	d.setupOnConfigReload()

	if current.DisableTray || d.opts.NoTray {
		d.logger.Debugw("Running without tray icon", "reason", "disabled in config or flags")

		// run in main thread while waiting on ctrl+C
		d.run()
	} else {
		d.runningWithTray = true
		d.initializeTray(d.run)
	}

	return nil
}

// SetVersion causes obsdeck to add a version string to its tray menu if called before Initialize
func (d *Obsdeck) SetVersion(version string) {
	d.version = version
}

// Verbose returns a boolean indicating whether obsdeck is running in verbose mode
func (d *Obsdeck) Verbose() bool {
	return d.opts.Verbose
}

func (d *Obsdeck) setupInterruptHandler() {
	interruptChannel := util.SetupCloseHandler()

	go func() {
		signal := <-interruptChannel
		d.logger.Debugw("Interrupted", "signal", signal)
		d.signalStop()
	}()
}

// setupOnConfigReload applies the settings that can change without a restart
func (d *Obsdeck) setupOnConfigReload() {
	reloads := d.configMan.SubscribeToChanges()

	go func() {
		defer d.recoverFromPanic()

		for config := range reloads {
			d.notifier.SetMuted(config.DisableNotifications)
			d.logger.Debugw("Applied reloaded notification setting", "disabled", config.DisableNotifications)
		}
	}()
}

func (d *Obsdeck) run() {
	d.logger.Info("Run loop starting")

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.spawn(func() {
		d.configMan.WatchConfigFileChanges()
	})

	d.spawn(func() {
		if err := d.bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warnw("Bridge stopped", "error", err)
		}
	})

	if addr := d.configMan.Current().MetricsAddr; addr != "" {
		d.spawn(func() {
			if err := d.metrics.Serve(ctx, d.logger, addr); err != nil {
				d.logger.Warnw("Failed to serve metrics", "addr", addr, "error", err)
			}
		})
	}

	go func() {
		defer d.recoverFromPanic()

		if _, err := d.program.Run(); err != nil {
			d.logger.Warnw("Panel stopped with error", "error", err)
		}

		d.logger.Debug("Panel exited")
		d.signalStop()
	}()

	// wait until gracefully stopped
	<-d.stopChannel
	d.logger.Debug("Stop channel signaled, terminating")

	if err := d.stop(); err != nil {
		d.logger.Warnw("Failed to stop obsdeck", "error", err)
		os.Exit(1)
	} else {
		os.Exit(0)
	}
}

// spawn runs fn as a tracked worker that stop waits for
func (d *Obsdeck) spawn(fn func()) {
	d.workers.Add(1)

	go func() {
		defer d.workers.Done()
		defer d.recoverFromPanic()

		fn()
	}()
}

func (d *Obsdeck) signalStop() {
	d.logger.Debug("Signalling stop channel")

	select {
	case d.stopChannel <- true:
	default:
	}
}

// send hands a message to the panel from outside the UI thread
func (d *Obsdeck) send(msg tea.Msg) {
	if d.program == nil {
		return
	}
	d.program.Send(msg)
}

func (d *Obsdeck) stop() error {
	var err error

	d.stopOnce.Do(func() {
		d.logger.Info("Stopping")

		d.program.Quit()
		d.configMan.StopWatchingConfigFile()

		// the driver closes the OBS session on its way out
		d.cancel()
		d.workers.Wait()

		if d.runningWithTray {
			d.stopTray()
		}

		if releaseErr := d.mutex.Release(); releaseErr != nil {
			d.logger.Warnw("Failed to release single instance lock", "error", releaseErr)
			err = fmt.Errorf("release mutex: %w", releaseErr)
		}

		// attempt to sync on exit - this won't necessarily work but can't harm
		_ = d.logger.Sync()
	})

	return err
}
