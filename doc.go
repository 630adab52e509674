// Package brazesync is a bidirectional connector between an analytics
// event pipeline and the Braze marketing-automation API.
//
// On the export path, inbound analytics events are filtered against
// configurable allow lists, shaped into user attributes and events, and
// pushed as batched /users/track calls with both arrays capped at 75
// entries. On the import path, daily jobs walk the Braze analytics
// surface (campaigns, canvases, custom events, KPIs, news feed cards,
// segments, sessions), flatten each nested data-series bucket into a
// single event with colon-namespaced property keys, and ship the events
// to a downstream capture endpoint.
//
// # Layout
//
//   - pkg/braze: the core. Typed API client, pagination, the activity
//     filter, the data-series transformers, the export shaper and
//     batcher, and the import job orchestrator.
//   - pkg/capture: delivery of flattened events to the analytics
//     pipeline's ingestion endpoint.
//   - pkg/connector: the source/destination framework and the braze and
//     jsonfile connectors built on it.
//   - internal/pipeline: the streaming engine behind the run command.
//   - cmd/brazesync: the CLI (run, import, export, list, config).
//
// Supporting packages (pkg/logger, pkg/errors, pkg/config, pkg/json,
// pkg/pool, pkg/strings, pkg/metrics, pkg/clients, pkg/compression,
// pkg/observability) carry the ambient concerns: structured logging,
// typed errors, unified configuration, pooled serialization, HTTP
// resilience, and telemetry.
//
// # Quick start
//
// Replay captured events to Braze:
//
//	brazesync export --config braze-destination.yaml --input events.jsonl
//
// Run today's analytics import:
//
//	brazesync import --config braze-source.yaml
package brazesync
