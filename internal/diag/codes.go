package diag

import "fmt"

type Code uint16

const (
	// UnknownCode is the fallback for unclassified failures.
	UnknownCode Code = 0

	// Configuration and options
	OptInfo               Code = 1000
	OptInvalidConfig      Code = 1001
	OptMissingConfigPath  Code = 1002
	OptBadLocale          Code = 1003
	OptLocaleUnavailable  Code = 1004
	OptMissingTranslation Code = 1005

	// Structural loading
	StructInfo       Code = 2000
	StructLoadFailed Code = 2001

	// Lazy routes
	RouteInfo              Code = 3000
	RouteConflict          Code = 3001
	RouteRemapped          Code = 3002
	RouteDiscoveryDisabled Code = 3003

	// Worker channel
	WorkInfo        Code = 4000
	WorkSpawnFailed Code = 4001
	WorkCrashed     Code = 4002

	// Compile and emit
	CompSyntaxError   Code = 5001
	CompInternalError Code = 5002
	EmitSkipped       Code = 5003
	EmitFileFailed    Code = 5004

	// I/O
	IOReadFailed Code = 6001
)

func (c Code) String() string {
	return fmt.Sprintf("EMB%04d", uint16(c))
}
