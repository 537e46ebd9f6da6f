package engine

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every backend
	EngineStageShutdown
)

var stageNames = [...]string{
	EngineStageUninitialized: "uninitialized",
	EngineStageBooting:       "booting",
	EngineStageBootComplete:  "boot complete",
	EngineStageInitializing:  "initializing",
	EngineStageInitialized:   "initialized",
	EngineStageRunning:       "running",
	EngineStageShuttingDown:  "shutting down",
	EngineStageShutdown:      "shutdown",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}
