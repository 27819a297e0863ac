package observability

const (
	AttrTaskID    = "ares.task_id"
	AttrAgentID   = "ares.agent_id"
	AttrToolName  = "ares.tool_name"
	AttrVerdict   = "ares.verdict"
	AttrErrorType = "error.type"

	SpanCollect         = "ares.collect"
	SpanValidate        = "ares.validate"
	SpanVerify          = "ares.verify"
	SpanRollbackExecute = "ares.rollback.execute"
	SpanBusPublish      = "ares.bus.publish"

	DefaultServiceName = "ares"
	DefaultMetricsPath = "/metrics"
)
