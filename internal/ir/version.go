package ir

// Version constants for IR schema and compiler.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// CompilerVersion is the dtc compiler version, stamped into the header
	// of every generated file.
	CompilerVersion = "0.3.0"
)
