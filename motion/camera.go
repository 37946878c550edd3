package motion

import "github.com/Seednode/partyclient/protocol"

// DefaultLocalPosition stands in for the local player until its first
// position arrives.
var DefaultLocalPosition = protocol.Vec{X: 400, Y: 300}

type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var DefaultViewport = Viewport{Width: 1280, Height: 720}

// Camera is the offset applied to every rendered entity and the
// background grid so the local player stays centred.
func Camera(vp Viewport, visual map[string]protocol.Vec, localID string) protocol.Vec {
	local, ok := visual[localID]
	if !ok || localID == "" {
		local = DefaultLocalPosition
	}

	return protocol.Vec{
		X: vp.Width/2 - local.X,
		Y: vp.Height/2 - local.Y,
	}
}
