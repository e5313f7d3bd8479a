package ir

// Version constants for the snapshot schema and engine.
const (
	// SchemaVersion is the graph snapshot schema version.
	SchemaVersion = "1"

	// EngineVersion is the policygraph engine version.
	EngineVersion = "0.1.0"
)
