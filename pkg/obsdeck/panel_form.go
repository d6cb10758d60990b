package obsdeck

import (
	"strconv"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/bridge"
)

const (
	fieldAddress = iota
	fieldPort
	fieldPassword
)

var formLabels = []string{"Address", "Port", "Password"}

// loginForm collects the connection parameters as text
type loginForm struct {
	inputs  []textinput.Model
	focused int
	visible bool
	err     string
}

func newLoginForm(defaults bridge.LogIn) loginForm {
	address := textinput.New()
	address.Placeholder = defaultAddress
	address.CharLimit = 253
	address.SetValue(defaults.Address)

	port := textinput.New()
	port.Placeholder = strconv.Itoa(defaultPort)
	port.CharLimit = 5
	if defaults.Port != 0 {
		port.SetValue(strconv.Itoa(int(defaults.Port)))
	}

	password := textinput.New()
	password.Placeholder = "none"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.SetValue(defaults.Credential)

	return loginForm{inputs: []textinput.Model{address, port, password}}
}

func (f *loginForm) open() tea.Cmd {
	f.visible = true
	return f.focus(fieldAddress)
}

func (f *loginForm) close() {
	f.visible = false
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

func (f *loginForm) focus(field int) tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}

	f.focused = (field + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focused].Focus()
}

// parse turns the fields into a LogIn; an empty port means the default one
func (f *loginForm) parse() (bridge.LogIn, error) {
	port := f.inputs[fieldPort].Value()
	if port == "" {
		port = strconv.Itoa(defaultPort)
	}

	return bridge.ParseLogIn(f.inputs[fieldAddress].Value(), port, f.inputs[fieldPassword].Value())
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)

	return cmd
}
