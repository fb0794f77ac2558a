package types

// CloudWatch metric names and dimension keys.
const (
	// Metric Names
	MetricRefreshCycle    = "RefreshCycle"
	MetricRefreshDuration = "RefreshDuration"
	MetricZoneFailure     = "ZoneFailure"
	MetricDwellHours      = "DwellHours"

	// Dimension Keys
	DimZone      = "Zone"
	DimWindow    = "Window"
	DimErrorCode = "ErrorCode"
	DimEntity    = "Entity"

	// Metric Namespace
	MetricNamespace = "ZoneTime"
)
