package observability

// Metric name prefix
const MetricPrefix = "settlement"

// Label values for operation results
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Label keys
const (
	LabelGameType  = "game_type"
	LabelEventType = "event_type"
	LabelResult    = "result"
	LabelStatus    = "status"
	LabelCode      = "code"
	LabelRoute     = "route"
	LabelMethod    = "method"
	LabelWorker    = "worker"
)
