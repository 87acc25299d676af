// Package descriptor defines the read-only view of declared test metadata.
//
// It provides:
//   - TestDescriptor: a test identified by (group, name) with its declared
//     method dependencies, optional priority and skip reason
//   - GroupDescriptor: a test group identified by a stable GroupID with its
//     declared group dependencies
//   - Node, Prioritized and Skippable: the capability interfaces consumed
//     by the orderers and the runtime guard
//
// Descriptors are built once at discovery time and never mutated afterwards.
package descriptor
