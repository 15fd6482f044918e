// Package parliament keeps in-memory mirrors ("archives") of selected job
// objects consistent across the processes of the GPU job manager without
// routing every read through the relational database.
//
// # Overview
//
// Processes join in one of two roles:
//
//   - Senators (authoritative peers) join the ordered multicast group and see
//     every UPDATE, CREATE_ARCHIVE and CANCEL_ARCHIVE envelope.
//   - Masses (observer peers) declare the archive keys they care about and a
//     unique name. They only receive UPDATE envelopes for those keys, through a
//     unicast queue bearing their name.
//
// A local mutation goes through Parliament.Set: the hook registered for the
// (class, attribute) pair builds an update, applies it locally and decides where
// to broadcast it. Remote peers apply the update through the same hook's
// ApplyRemote step from their watcher loop.
//
// # Redis Schema
//
// All keys are namespaced by group:
//
//	parliament:{group}:senate:seq        multicast counter
//	parliament:{group}:senate:{index}    multicast entry (expires after retention)
//	parliament:{group}:mass:{name}       unicast queue for one observer
//	parliament:{group}:members           durable observer membership (hash)
//
// # Ordering
//
// Multicast entries are totally ordered by index. Fields registered with a
// PathHook are additionally ordered by an order token assigned by the system
// of record; relayed updates are applied only when their token is strictly
// greater than the last one applied for the same path.
package parliament
