// Package services holds the corpus pipeline's business logic: the
// extractor registry, the normaliser and its PII guard, the version
// manager and the orchestrator that runs them over the raw tree.
//
// Services only talk to infrastructure through driven ports and are
// exposed to the CLI through the driving ports.
package services
