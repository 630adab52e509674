// Package connector provides the framework brazesync moves data
// through: typed source and destination contracts, a production base
// connector, and a registry the CLI resolves connectors from.
//
// # Architecture Overview
//
// The connector package is organized into several sub-packages:
//
//   - core: Defines the fundamental interfaces (Source, Destination)
//     that all connectors implement, plus the record and batch streams
//     that move data between them and the Position/State types
//     connectors checkpoint with.
//
//   - base: Provides BaseConnector, a foundation that implements common
//     functionality like circuit breakers, rate limiting, retry
//     policies, error categorization, health checks, and progress
//     reporting. All connectors embed BaseConnector.
//
//   - sources: Contains the Braze source, which runs the daily
//     analytics import (campaigns, canvases, custom events, KPIs, news
//     feed cards, segments, sessions) and streams flattened events, and
//     the jsonfile source, which replays a JSON-lines file.
//
//   - destinations: Contains the Braze destination, which shapes
//     inbound analytics events against the export allow lists and
//     dispatches /users/track payloads, and the jsonfile destination,
//     which dumps record streams to disk.
//
//   - registry: Implements factory registration and lookup. Connector
//     packages self-register from init functions; blank-importing
//     pkg/connector registers everything.
//
// # Core Concepts
//
// Unified configuration: all connectors take a config.BaseConfig with
// standardized sections for performance, timeouts, reliability,
// security, and observability. Connector-specific settings (API keys,
// endpoints, allow lists, file paths) travel in Security.Credentials.
//
// Record streams: sources produce pooled records on a channel and close
// it when the pass ends; a terminal failure arrives on the stream's
// error channel. Destinations consume the stream and release each
// record once processed.
//
// # Example Usage
//
// Creating a source connector:
//
//	cfg := config.NewBaseConfig("braze", "source")
//	cfg.Security.Credentials["endpoint"] = "https://rest.iad-03.braze.com"
//	cfg.Security.Credentials["api_key"] = os.Getenv("BRAZE_API_KEY")
//
//	source, err := registry.CreateSource("braze", cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := source.Initialize(ctx, cfg); err != nil {
//		log.Fatal(err)
//	}
//	defer source.Close(ctx)
//
//	stream, err := source.Read(ctx)
//
// Creating a destination connector:
//
//	dest, err := registry.CreateDestination("braze", cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := dest.Initialize(ctx, cfg); err != nil {
//		log.Fatal(err)
//	}
//	defer dest.Close(ctx)
//
//	err = dest.Write(ctx, stream)
//
// # Best Practices
//
// 1. Always embed BaseConnector and call its Initialize first
// 2. Use structured errors from the errors package
// 3. Obtain records from the pool package and release them exactly once
// 4. Close record channels from the producer side only
// 5. Implement proper cleanup in Close() methods
// 6. Handle context cancellation on every blocking send
package connector
