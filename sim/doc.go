// Package sim provides the discrete-event simulation kernel for HealthDES.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - environment.go: virtual clock, event queue and the Run loop
//   - event.go: events, timeouts and the AnyOf race combinator
//   - process.go: cooperative processes and Wait
//   - store.go, resource.go: mailboxes and capacity-limited admission
//
// # Scheduling Model
//
// Everything runs on a single logical thread over a virtual clock measured in
// ticks. Events are processed in (timestamp, priority, insertion) order, so two
// runs with the same inputs replay identically. Processes are goroutines, but
// the Environment hands control to exactly one of them at a time; a process
// only gives up control inside Wait.
//
// # Architecture
//
// The kernel is domain-free; the layers above it live in sub-packages:
//   - sim/activity/: activity state machine (acquire, run, release)
//   - sim/person/: entity state machine pipelining two activities
//   - sim/routing/: routing graph of decisions (nodes) and activities (edges)
//   - sim/attrs/: typed attribute, status and action registries
//   - sim/report/: counters, tabular logs and result export
//   - sim/microenv/, sim/visitor/: airborne-transmission domain model
//   - sim/scenario/: simulation driver
package sim
