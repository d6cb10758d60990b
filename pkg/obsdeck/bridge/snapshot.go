package bridge

import (
	"fmt"
	"strings"
)

// InventoryKind identifies one of the inventories the mixer exposes
type InventoryKind int

const (
	KindInputs InventoryKind = iota
	KindOutputs
	KindScenes
	KindSceneCollections
)

// DefaultInventories is the full refresh set in emission order
var DefaultInventories = []InventoryKind{KindInputs, KindOutputs, KindScenes, KindSceneCollections}

func (k InventoryKind) String() string {
	switch k {
	case KindInputs:
		return "inputs"
	case KindOutputs:
		return "outputs"
	case KindScenes:
		return "scenes"
	case KindSceneCollections:
		return "scene_collections"
	default:
		return fmt.Sprintf("inventory(%d)", int(k))
	}
}

// ParseInventoryKind accepts the names produced by String, as used in config.yaml
func ParseInventoryKind(s string) (InventoryKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inputs":
		return KindInputs, nil
	case "outputs":
		return KindOutputs, nil
	case "scenes":
		return KindScenes, nil
	case "scene_collections", "scene-collections":
		return KindSceneCollections, nil
	default:
		return 0, fmt.Errorf("unknown inventory kind %q", s)
	}
}

// Input is a controllable source of the mixer
type Input struct {
	Name string
	Kind string
}

// IsMicrophone reports whether the source captures an input device
func (i Input) IsMicrophone() bool {
	return strings.Contains(i.Kind, "input")
}

// IsDesktopAudio reports whether the source captures an output device
func (i Input) IsDesktopAudio() bool {
	return strings.Contains(i.Kind, "output")
}

type Output struct {
	Name   string
	Kind   string
	Active bool
}

type Scene struct {
	Name  string
	Index int
}

// Snapshot is a full-replacement inventory update of one kind
type Snapshot interface {
	Kind() InventoryKind
}

type InputInventory struct {
	Inputs []Input
}

type OutputInventory struct {
	Outputs []Output
}

type SceneInventory struct {
	CurrentProgram string
	CurrentPreview string
	Scenes         []Scene
}

type SceneCollectionInventory struct {
	Current     string
	Collections []string
}

func (InputInventory) Kind() InventoryKind           { return KindInputs }
func (OutputInventory) Kind() InventoryKind          { return KindOutputs }
func (SceneInventory) Kind() InventoryKind           { return KindScenes }
func (SceneCollectionInventory) Kind() InventoryKind { return KindSceneCollections }
