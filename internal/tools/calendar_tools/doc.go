// Package calendar_tools exposes the free slot search as the MCP tool
// calendar_find_free_slots.
package calendar_tools
