// Package orchestrator drives red-team passes end to end: building
// normalizer requests from raw prompts, dispatching them to a target
// in batches, and scoring the recorded responses.
package orchestrator

// DefaultBatchSize bounds concurrent target calls when a config leaves
// the batch size unset.
const DefaultBatchSize = 10
