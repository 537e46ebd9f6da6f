package settings

import "fmt"

type MultiSamplingMode int

const (
	MultiSamplingNone MultiSamplingMode = 1
	MultiSamplingMSAA MultiSamplingMode = 2
)

func (m MultiSamplingMode) String() string {
	switch m {
	case MultiSamplingNone:
		return "none"
	case MultiSamplingMSAA:
		return "msaa"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMultiSamplingMode reads the mode names used in configuration files.
func ParseMultiSamplingMode(s string) (MultiSamplingMode, error) {
	switch s {
	case "none", "":
		return MultiSamplingNone, nil
	case "msaa":
		return MultiSamplingMSAA, nil
	}
	return 0, fmt.Errorf("unknown multisampling mode %q", s)
}

type MultiSamplingCount int

const (
	Samples1  MultiSamplingCount = 1
	Samples2  MultiSamplingCount = 2
	Samples4  MultiSamplingCount = 4
	Samples8  MultiSamplingCount = 8
	Samples16 MultiSamplingCount = 16
	Samples32 MultiSamplingCount = 32
)

var AllMultiSamplingCounts = []MultiSamplingCount{Samples1, Samples2, Samples4, Samples8, Samples16, Samples32}

func (c MultiSamplingCount) Valid() bool {
	switch c {
	case Samples1, Samples2, Samples4, Samples8, Samples16, Samples32:
		return true
	}
	return false
}

// Label is the name shown in settings menus.
func (c MultiSamplingCount) Label() string {
	return fmt.Sprintf("x%d", int(c))
}

type DebugVisualizationMode int

const (
	DebugNone DebugVisualizationMode = iota
	DebugDepth
	DebugNormals
	DebugForwardPlus
	DebugShadowMapping
	DebugVisualizationCount
)

var debugVisualizationNames = [DebugVisualizationCount]string{
	"None",
	"Depth",
	"Normals",
	"ForwardPlus",
	"ShadowMapping",
}

func (m DebugVisualizationMode) String() string {
	if m < 0 || m >= DebugVisualizationCount {
		return "Invalid"
	}
	return debugVisualizationNames[m]
}

// DebugVisualizationNames lists every mode in order, for menus.
func DebugVisualizationNames() []string {
	return debugVisualizationNames[:]
}
