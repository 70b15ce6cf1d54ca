package calendar_tools

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/timeslotseeker/internal/server"
)

// RegisterCalendarTools registers all calendar tools with the MCP server.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := RegisterSlotTools(s, sc); err != nil {
		return fmt.Errorf("failed to register slot tools: %w", err)
	}
	return nil
}
