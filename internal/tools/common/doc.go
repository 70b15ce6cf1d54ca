// Package common provides shared helpers for MCP tool handlers: argument
// parsing and the instrumentation wrapper every tool is registered through.
package common
