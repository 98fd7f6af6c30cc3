package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for finding persistence.
	DatabaseBackend string

	// Origin tells where a trackable finding came from.
	Origin string

	// Severity represents the impact level reported by an analyzer.
	Severity string

	// FindingType represents the category of a finding.
	FindingType string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All store backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	BadgerBackend     DatabaseBackend = "badger"
	NoneBackend       DatabaseBackend = "none"
)

// Finding origins.
const (
	LocalOrigin  Origin = "local"
	ServerOrigin Origin = "server"
)

// Severities, in decreasing order of impact.
const (
	BlockerSeverity  Severity = "BLOCKER"
	CriticalSeverity Severity = "CRITICAL"
	MajorSeverity    Severity = "MAJOR"
	MinorSeverity    Severity = "MINOR"
	InfoSeverity     Severity = "INFO"
)

// Finding types.
const (
	IssueType      FindingType = "issue"
	HotspotType    FindingType = "hotspot"
	TaintType      FindingType = "taint"
	DependencyType FindingType = "dependency_risk"
)

// DefaultMainBranch is used when the server does not designate a main branch.
const DefaultMainBranch = "main"

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidStoreBackends lists all valid store backends.
var ValidStoreBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	BadgerBackend:     {},
	NoneBackend:       {},
}
