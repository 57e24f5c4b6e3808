package ir

// Version constants for recorded runs.
const (
	// IRVersion is the specification schema version.
	IRVersion = "1"

	// EngineVersion is the prm engine version.
	EngineVersion = "0.1.0"
)
