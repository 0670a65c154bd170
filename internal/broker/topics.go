package broker

// Pipeline topics. Stage handoffs travel through the broker so each stage
// survives process restarts independently.
const (
	// TopicCreateVectors starts chunking, anonymization, and indexing for a
	// release.
	TopicCreateVectors = "releases.create_vectors"

	// TopicCreateCheckTree starts snapshotting and branch evaluation once
	// vectors exist.
	TopicCreateCheckTree = "releases.create_check_tree"

	// TopicSendNotification asks the out-of-process sender to notify users.
	TopicSendNotification = "notifications.send"
)

// PipelineTopics lists every topic the pipeline consumes or produces.
var PipelineTopics = []string{
	TopicCreateVectors,
	TopicCreateCheckTree,
	TopicSendNotification,
}
