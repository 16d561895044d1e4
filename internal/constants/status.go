package constants

// Cycle outcomes, used as metric labels and log fields.
const (
	// CycleResultPublished indicates that the cycle published its record
	CycleResultPublished = "published"
	// CycleResultFailed indicates that a collaborator failed and the cycle was abandoned
	CycleResultFailed = "failed"
	// CycleResultCancelled indicates that the agent was shutting down mid-cycle
	CycleResultCancelled = "cancelled"
)

// Cycle steps in execution order.
const (
	StepScan       = "scan"
	StepGPSUpdate  = "gps_update"
	StepSensorRead = "sensor_read"
	StepCompose    = "compose"
	StepPublish    = "publish"
	StepReset      = "reset"
)
