// Package pass maps rendering pipeline types to render passes and owns the
// per-frame attachments of render targets.
package pass

type RenderingPipelineType int

const (
	None RenderingPipelineType = iota - 1
	GUI
	Text2D
	Text3D
	Skybox
	PBRModel
	Reflection
	AdditiveLighting
	AdditiveLightingMS
	CascadedShadowMapping
	ForwardPlusLightCulling
	BRDF_LUT
	IrradianceMap
	RadianceMap
	Count
)

var pipelineTypeNames = [Count]string{
	GUI:                     "GUI",
	Text2D:                  "Text2D",
	Text3D:                  "Text3D",
	Skybox:                  "Skybox",
	PBRModel:                "PBRModel",
	Reflection:              "Reflection",
	AdditiveLighting:        "AdditiveLighting",
	AdditiveLightingMS:      "AdditiveLightingMS",
	CascadedShadowMapping:   "CascadedShadowMapping",
	ForwardPlusLightCulling: "ForwardPlusLightCulling",
	BRDF_LUT:                "BRDF_LUT",
	IrradianceMap:           "IrradianceMap",
	RadianceMap:             "RadianceMap",
}

func (t RenderingPipelineType) String() string {
	switch {
	case t == None:
		return "None"
	case t == Count:
		return "Count"
	case t.Valid():
		return pipelineTypeNames[t]
	}
	return "Unknown"
}

// Valid reports whether t names a real pipeline, not a sentinel.
func (t RenderingPipelineType) Valid() bool {
	return t > None && t < Count
}

// Slots returns the pipeline types a pass registered for t answers. The
// PBR pass shares its attachments with reflection and additive lighting.
func (t RenderingPipelineType) Slots() []RenderingPipelineType {
	if t == PBRModel {
		return []RenderingPipelineType{PBRModel, Reflection, AdditiveLighting, AdditiveLightingMS}
	}
	return []RenderingPipelineType{t}
}
