package obsdeck

import (
	_ "embed"
)

// LogoIconData is the tray and notification icon
//
//go:embed assets/logo.png
var LogoIconData []byte
