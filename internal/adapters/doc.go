// Package adapters parses platform chat exports into the normalized
// representation consumed by the import orchestrator.
//
// # Architecture
//
//	Raw bytes → Adapter.Parse → Extract{Users,Channels,Messages} → importer.NormalizedExport
//
// Each supported export dialect implements the Adapter interface. Parse
// validates the payload's top-level shape and fails with a fatal
// validation error when it does not match; the Extract methods then
// produce the normalized slices. Every reference field they emit is a
// source-native identifier — internal ids only exist once the
// orchestrator has created entities and bound them in its id map.
//
// # Adding a new dialect
//
//  1. Create a new file (e.g. matrix.go)
//  2. Define the source-specific structs mirroring the export layout
//  3. Implement the Adapter interface with a compile-time check:
//
//     var _ Adapter = (*MatrixAdapter)(nil)
//
//  4. Register the platform name in ForPlatform (adapter.go)
//
// # Existing adapters
//
//   - DiscordAdapter: DiscordChatExporter JSON (users derived from
//     message authors and mentions)
//   - SlackAdapter: aggregated Slack workspace export (explicit roster)
//   - GenericAdapter: CSV/JSON dumps with schema sniffing
package adapters
