// Package cmd implements the command-line interface for timeslotseeker.
//
// This package provides the following commands:
//   - find: Search the common free meeting slots of a set of participants
//   - simulate: Run the local work-hours simulation without calendar access
//   - auth: Authorize a Google account and store its token
//   - serve: Start the HTTP API and the MCP server
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The find command is the default command when no subcommand is specified.
package cmd
