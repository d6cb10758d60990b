package bridge

import (
	"math"

	"github.com/thoas/go-funk"
)

// ControlID names one of the panel's channel strips
type ControlID int

const (
	ControlMic ControlID = iota
	ControlDesktop
)

// Controls lists the strips in display order
var Controls = []ControlID{ControlMic, ControlDesktop}

func (id ControlID) String() string {
	if id == ControlDesktop {
		return "desktop"
	}
	return "mic"
}

// Control is the panel's local view of one strip
type Control struct {
	Source string
	Level  float64
	Muted  bool

	preferred string
}

// Cache is the consumer-side copy of the latest inventories plus per-strip state.
// Inventories are only ever replaced wholesale by Apply. It belongs to the render
// loop and is not safe for concurrent use.
type Cache struct {
	Inputs      []Input
	Outputs     []Output
	Scenes      SceneInventory
	Collections SceneCollectionInventory

	received map[InventoryKind]bool
	controls map[ControlID]*Control
}

func NewCache() *Cache {
	c := &Cache{
		received: make(map[InventoryKind]bool),
		controls: make(map[ControlID]*Control),
	}

	for _, id := range Controls {
		c.controls[id] = &Control{}
	}

	return c
}

// Apply replaces the cached inventory of the snapshot's kind
func (c *Cache) Apply(snapshot Snapshot) {
	switch s := snapshot.(type) {
	case InputInventory:
		c.Inputs = s.Inputs
		c.reconcileSelections()
	case OutputInventory:
		c.Outputs = s.Outputs
	case SceneInventory:
		c.Scenes = s
	case SceneCollectionInventory:
		c.Collections = s
	default:
		return
	}

	c.received[snapshot.Kind()] = true
}

// Has reports whether at least one snapshot of kind arrived
func (c *Cache) Has(kind InventoryKind) bool {
	return c.received[kind]
}

// Candidates returns the inputs a strip may select, classified by kind
func (c *Cache) Candidates(id ControlID) []Input {
	predicate := Input.IsMicrophone
	if id == ControlDesktop {
		predicate = Input.IsDesktopAudio
	}

	return funk.Filter(c.Inputs, predicate).([]Input)
}

func (c *Cache) candidateNames(id ControlID) []string {
	names := funk.Map(c.Candidates(id), func(i Input) string { return i.Name }).([]string)
	return funk.UniqString(names)
}

// Selected returns the strip's source, or false if nothing valid is selected
func (c *Cache) Selected(id ControlID) (string, bool) {
	source := c.controls[id].Source
	if source == "" || !funk.ContainsString(c.candidateNames(id), source) {
		return "", false
	}

	return source, true
}

// Select sets the strip's source. An empty name clears it; unknown names are refused.
func (c *Cache) Select(id ControlID, name string) bool {
	if name != "" && !funk.ContainsString(c.candidateNames(id), name) {
		return false
	}

	c.controls[id].Source = name
	return true
}

// Cycle moves the selection by delta through the candidates and "none"
func (c *Cache) Cycle(id ControlID, delta int) string {
	options := append([]string{""}, c.candidateNames(id)...)

	current, _ := c.Selected(id)
	idx := funk.IndexOfString(options, current)
	if idx < 0 {
		idx = 0
	}

	next := ((idx+delta)%len(options) + len(options)) % len(options)
	c.controls[id].Source = options[next]

	return options[next]
}

// Prefer remembers a source name to select automatically once it shows up
func (c *Cache) Prefer(id ControlID, name string) {
	c.controls[id].preferred = name
	c.reconcileSelections()
}

func (c *Cache) Control(id ControlID) Control {
	return *c.controls[id]
}

// SetLevel stores the strip level clamped to 0-100 and returns the stored value
func (c *Cache) SetLevel(id ControlID, level float64) float64 {
	level = math.Max(0, math.Min(100, level))
	c.controls[id].Level = level

	return level
}

func (c *Cache) SetMuted(id ControlID, muted bool) {
	c.controls[id].Muted = muted
}

// reconcileSelections drops selections that vanished from the inventory
// and picks up preferred sources that appeared.
func (c *Cache) reconcileSelections() {
	for _, id := range Controls {
		control := c.controls[id]
		names := c.candidateNames(id)

		if control.Source != "" && !funk.ContainsString(names, control.Source) {
			control.Source = ""
		}

		if control.Source == "" && control.preferred != "" && funk.ContainsString(names, control.preferred) {
			control.Source = control.preferred
		}
	}
}
