package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	AttrTopic         = attribute.Key("messaging.destination.name")
	AttrPartition     = attribute.Key("messaging.destination.partition.id")
	AttrResultStatus  = attribute.Key("offsets.result.status")
	AttrFetchStatus   = attribute.Key("offsets.fetch.status")
	AttrMintStatus    = attribute.Key("offsets.auth.mint.status")
	AttrErrorAction   = attribute.Key("offsets.error.action")
	AttrErrorPhase    = attribute.Key("offsets.error.phase")
	AttrAuthRegion    = attribute.Key("cloud.region")
	AttrLatestOffset  = attribute.Key("messaging.kafka.offset")
	AttrInspectWorker = attribute.Key("offsets.inspect.concurrency")
)

// Fetch and mint status values
const (
	StatusSuccess   = "success"
	StatusTimeout   = "timeout"
	StatusEmpty     = "empty"
	StatusTruncated = "truncated"
	StatusFailed    = "failed"
)
