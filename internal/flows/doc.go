// Package flows contains the pure orchestration logic for every engine
// operation. Each flow receives its collaborators as injected functions,
// which keeps this package free of storage, transport, and host imports
// and makes every path unit-testable with plain fakes.
package flows
