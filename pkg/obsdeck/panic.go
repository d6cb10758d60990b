package obsdeck

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/util"
)

const (
	crashlogFilename        = "obsdeck-crash-%s.log"
	crashlogTimestampFormat = "2006.01.02-15.04.05"

	crashMessage = `-----------------------------------------------------------------
                        obsdeck crashlog
-----------------------------------------------------------------
Unfortunately, obsdeck has crashed.
To help diagnose the issue, a crashlog has been generated.
Please consider sharing this file with developers to help improve obsdeck.
You can do so by opening an issue at: https://github.com/MixyLabs/obsdeck/issues/new
-----------------------------------------------------------------
Time: %s
Panic occurred: %s
Stack trace:
%s
-----------------------------------------------------------------
`
)

// writeCrashlog dumps the panic value and stack into the log directory and returns the file path
func writeCrashlog(dir string, now time.Time, r any, stack []byte) (string, error) {
	if err := util.EnsureDirExists(dir); err != nil {
		return "", fmt.Errorf("ensure crashlog dir exists: %w", err)
	}

	crashlogBytes := bytes.NewBufferString(fmt.Sprintf(crashMessage, now.Format(crashlogTimestampFormat), r, stack))
	crashlogPath := filepath.Join(dir, fmt.Sprintf(crashlogFilename, now.Format(crashlogTimestampFormat)))

	if err := os.WriteFile(crashlogPath, crashlogBytes.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write crashlog: %w", err)
	}

	return crashlogPath, nil
}

// recoverFromPanic is deferred at the top of every goroutine obsdeck starts
func (d *Obsdeck) recoverFromPanic() {
	r := recover()

	if r == nil {
		return
	}

	// give the terminal back before anything else
	if d.program != nil {
		d.program.Kill()
	}

	crashlogPath, err := writeCrashlog(logDirectory, time.Now(), r, debug.Stack())
	if err != nil {
		panic(fmt.Errorf("can't even write the crashlog file contents: %w", err))
	}

	d.logger.Errorw("Encountered and logged panic, crashing",
		"crashlogPath", crashlogPath,
		"error", r)

	d.notifier.Notify("Unexpected crash occurred...",
		fmt.Sprintf("More details in %s", crashlogPath))

	d.logger.Errorw("Quitting", "exitCode", 1)
	_ = d.logger.Sync()
	os.Exit(1)
}
