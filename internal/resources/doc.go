// Package resources exposes read-only MCP resources describing how the
// server evaluates free slots, so assistants can explain results and pick
// valid request parameters before calling a tool.
package resources
