package kafka

// Topic names for the decision audit stream
const (
	TopicFlowBatches = "helios.flow.batches"
	TopicOpinions    = "helios.agent.opinions"
	TopicDecisions   = "helios.decisions"
	TopicEmergency   = "helios.risk.emergency"
)
