// Package manifest reads depspec suite files.
//
// A manifest declares test groups, their tests, and the dependency, priority
// and skip labels attached to each. Manifests are YAML or JSON, validated
// against an embedded JSON schema plus semantic checks (unique group IDs,
// unique test names per group), and converted into descriptors for the
// orderer and the runtime guard.
package manifest
