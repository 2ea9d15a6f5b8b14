// Package dbus exposes the scatter control interface on the session bus.
// The io.github.jmylchreest.Scatter1 interface lets other programs show
// messages, run overlay commands and read engine status. A small Client
// wraps the same interface for the scatter command line tool.
package dbus
