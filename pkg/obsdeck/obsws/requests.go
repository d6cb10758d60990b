package obsws

import (
	"context"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/bridge"
)

type inputListResponse struct {
	Inputs []struct {
		InputName            string `json:"inputName"`
		InputKind            string `json:"inputKind"`
		UnversionedInputKind string `json:"unversionedInputKind"`
	} `json:"inputs"`
}

type outputListResponse struct {
	Outputs []struct {
		OutputName   string `json:"outputName"`
		OutputKind   string `json:"outputKind"`
		OutputActive bool   `json:"outputActive"`
	} `json:"outputs"`
}

type sceneListResponse struct {
	CurrentProgramSceneName string `json:"currentProgramSceneName"`
	// null while studio mode is off
	CurrentPreviewSceneName *string `json:"currentPreviewSceneName"`
	Scenes                  []struct {
		SceneName  string `json:"sceneName"`
		SceneIndex int    `json:"sceneIndex"`
	} `json:"scenes"`
}

type sceneCollectionListResponse struct {
	CurrentSceneCollectionName string   `json:"currentSceneCollectionName"`
	SceneCollections           []string `json:"sceneCollections"`
}

func (c *Client) ListInputs(ctx context.Context) ([]bridge.Input, error) {
	var resp inputListResponse
	if err := c.request(ctx, "GetInputList", nil, &resp); err != nil {
		return nil, err
	}

	inputs := make([]bridge.Input, 0, len(resp.Inputs))
	for _, input := range resp.Inputs {
		kind := input.UnversionedInputKind
		if kind == "" {
			kind = input.InputKind
		}
		inputs = append(inputs, bridge.Input{Name: input.InputName, Kind: kind})
	}

	return inputs, nil
}

func (c *Client) ListOutputs(ctx context.Context) ([]bridge.Output, error) {
	var resp outputListResponse
	if err := c.request(ctx, "GetOutputList", nil, &resp); err != nil {
		return nil, err
	}

	outputs := make([]bridge.Output, 0, len(resp.Outputs))
	for _, output := range resp.Outputs {
		outputs = append(outputs, bridge.Output{
			Name:   output.OutputName,
			Kind:   output.OutputKind,
			Active: output.OutputActive,
		})
	}

	return outputs, nil
}

func (c *Client) ListScenes(ctx context.Context) (bridge.SceneInventory, error) {
	var resp sceneListResponse
	if err := c.request(ctx, "GetSceneList", nil, &resp); err != nil {
		return bridge.SceneInventory{}, err
	}

	inventory := bridge.SceneInventory{
		CurrentProgram: resp.CurrentProgramSceneName,
		Scenes:         make([]bridge.Scene, 0, len(resp.Scenes)),
	}
	if resp.CurrentPreviewSceneName != nil {
		inventory.CurrentPreview = *resp.CurrentPreviewSceneName
	}
	for _, scene := range resp.Scenes {
		inventory.Scenes = append(inventory.Scenes, bridge.Scene{Name: scene.SceneName, Index: scene.SceneIndex})
	}

	return inventory, nil
}

func (c *Client) ListSceneCollections(ctx context.Context) (bridge.SceneCollectionInventory, error) {
	var resp sceneCollectionListResponse
	if err := c.request(ctx, "GetSceneCollectionList", nil, &resp); err != nil {
		return bridge.SceneCollectionInventory{}, err
	}

	return bridge.SceneCollectionInventory{
		Current:     resp.CurrentSceneCollectionName,
		Collections: resp.SceneCollections,
	}, nil
}

func (c *Client) SetMute(ctx context.Context, sourceID string, muted bool) error {
	return c.request(ctx, "SetInputMute", map[string]any{
		"inputName":  sourceID,
		"inputMuted": muted,
	}, nil)
}

// SetVolume sets the multiplicative volume factor of an input (1.0 is unity gain)
func (c *Client) SetVolume(ctx context.Context, sourceID string, factor float64) error {
	return c.request(ctx, "SetInputVolume", map[string]any{
		"inputName":      sourceID,
		"inputVolumeMul": factor,
	}, nil)
}

var _ bridge.Session = (*Client)(nil)
var _ bridge.Dialer = (*Dialer)(nil)
