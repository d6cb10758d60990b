package bridge

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Command is an operator intent travelling from the panel to the driver
type Command interface {
	commandMarker()
	String() string
}

// LogIn asks the driver to open a session with the mixer
type LogIn struct {
	Address    string
	Port       uint16
	Credential string
}

func (LogIn) commandMarker() {}

// the credential never makes it into logs
func (c LogIn) String() string {
	return fmt.Sprintf("LogIn(%s)", net.JoinHostPort(c.Address, strconv.Itoa(int(c.Port))))
}

// SetMute sets the mute flag of a source to exactly Muted
type SetMute struct {
	SourceID string
	Muted    bool
}

func (SetMute) commandMarker() {}
func (c SetMute) String() string {
	return fmt.Sprintf("SetMute(source=%q, muted=%v)", c.SourceID, c.Muted)
}

// SetVolume sets the level of a source, LevelPercent being the 0-100 value the operator sees
type SetVolume struct {
	SourceID     string
	LevelPercent float64
}

func (SetVolume) commandMarker() {}
func (c SetVolume) String() string {
	return fmt.Sprintf("SetVolume(source=%q, level=%.1f%%)", c.SourceID, c.LevelPercent)
}

// Factor converts the operator-facing percentage into the multiplicative factor the mixer expects
func (c SetVolume) Factor() float64 {
	return c.LevelPercent / 100.0
}

// Refresh re-fetches every configured inventory on an established session
type Refresh struct{}

func (Refresh) commandMarker() {}
func (Refresh) String() string { return "Refresh()" }

// ParseLogIn turns the raw text of a login form into a LogIn command.
// The address may be an IP literal or a host name; the port must be in 1-65535.
func ParseLogIn(address, port, credential string) (LogIn, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return LogIn{}, fmt.Errorf("parse address: empty")
	}

	// tolerate "[::1]" as typed by people used to URLs
	address = strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")

	if ip := net.ParseIP(address); ip == nil && strings.ContainsAny(address, " /:") {
		return LogIn{}, fmt.Errorf("parse address %q: not an IP or host name", address)
	}

	portNum, err := strconv.ParseUint(strings.TrimSpace(port), 10, 16)
	if err != nil {
		return LogIn{}, fmt.Errorf("parse port %q: %w", port, err)
	}
	if portNum == 0 {
		return LogIn{}, fmt.Errorf("parse port %q: must not be zero", port)
	}

	return LogIn{
		Address:    address,
		Port:       uint16(portNum),
		Credential: credential,
	}, nil
}

// CommandName is the short label used in logs and metrics
func CommandName(cmd Command) string {
	switch cmd.(type) {
	case LogIn:
		return "login"
	case SetMute:
		return "set_mute"
	case SetVolume:
		return "set_volume"
	case Refresh:
		return "refresh"
	default:
		return "unknown"
	}
}
