// Package tickbench provides the `tickbench` command.
//
// tickbench streams synthetic measurements from a publisher to a subscriber
// over the in-memory loopback once per compression mode and reports the wire
// cost of each. It is meant for comparing modes and payload algorithms on a
// given signal count, not for measuring network throughput.
//
// Usage
//
//	tickbench --signals 2000 --cycles 600
//	tickbench --mode compact --mode tssc --buffer-blocks 50
//	tickbench --config tickstream.yaml --json
//
// The publisher settings come from --config (see package config); the mode
// under test replaces compressionMode on every run.
package tickbench
