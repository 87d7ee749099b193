// Package sequencer holds the pure ordering and timing decisions shared by the
// navigation stack, the batch writer and the control loop: selection
// wrap-around, sort comparators, idle/throttle detection and the batch-flush
// policy. Nothing here performs I/O or reads the clock; callers pass "now".
package sequencer
