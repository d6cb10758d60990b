package obsdeck

import (
	"fyne.io/systray"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/util"
)

func (d *Obsdeck) initializeTray(onDone func()) {
	logger := d.logger.Named("tray")

	onReady := func() {
		logger.Debug("Tray instance ready")

		systray.SetTemplateIcon(LogoIconData, LogoIconData)
		systray.SetTitle("obsdeck")
		systray.SetTooltip("obsdeck")

		editConfig := systray.AddMenuItem("Edit configuration", "Open config file with the default editor")

		reconnect := systray.AddMenuItem("Reconnect to OBS", "Log in again with the last connection settings")

		rescan := systray.AddMenuItem("Re-scan OBS sources", "Manually refresh inputs, outputs and scenes if something's stuck")

		if d.version != "" {
			systray.AddSeparator()
			versionInfo := systray.AddMenuItem(d.version, "")
			versionInfo.Disable()
		}

		systray.AddSeparator()
		quit := systray.AddMenuItem("Quit", "Stop obsdeck and quit")

		go func() {
			defer d.recoverFromPanic()

			for {
				select {
				case <-quit.ClickedCh:
					logger.Info("Quit menu item clicked, stopping")

					d.signalStop()

				case <-editConfig.ClickedCh:
					logger.Info("Edit config menu item clicked, opening config for editing")

					if err := util.OpenExternal(logger, util.DefaultEditor(), d.configMan.configPath); err != nil {
						logger.Warnw("Failed to open config file for editing", "error", err)
					}

				case <-reconnect.ClickedCh:
					logger.Info("Reconnect menu item clicked, asking panel to log in again")
					d.send(reconnectMsg{})

				case <-rescan.ClickedCh:
					logger.Info("Re-scan menu item clicked, asking panel to refresh inventories")
					d.send(rescanMsg{})
				}
			}
		}()

		onDone()
	}

	onExit := func() {
		logger.Debug("Tray exited")
	}

	logger.Debug("Running in tray")
	systray.Run(onReady, onExit)
}

func (d *Obsdeck) stopTray() {
	d.logger.Debug("Quitting tray")
	systray.Quit()
}
