// Package daemon provides the main orchestration for scatterd.
// It wires the event loop, overlay engine, rendering surface, transports
// and control services together and reloads configuration as it changes.
package daemon
