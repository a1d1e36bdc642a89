package ir

// Version constants recorded with every persisted resolution.
const (
	// IRVersion is the predicate IR schema version.
	IRVersion = "1"

	// EngineVersion is the resolution engine version.
	EngineVersion = "0.1.0"
)
