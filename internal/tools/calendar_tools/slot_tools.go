package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/timeslotseeker/internal/finder"
	"github.com/teemow/timeslotseeker/internal/format"
	"github.com/teemow/timeslotseeker/internal/server"
	"github.com/teemow/timeslotseeker/internal/tools/common"
)

const (
	// FindFreeSlotsTool is the MCP name of the free slot search.
	FindFreeSlotsTool = "calendar_find_free_slots"

	defaultWeeks      = 1
	defaultMaxResults = 10
)

// RegisterSlotTools registers the free slot search tool.
func RegisterSlotTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	tool := mcp.NewTool(FindFreeSlotsTool,
		mcp.WithDescription("Find common free meeting slots for a group of people. Slots fall on weekdays within working hours and start at the next slot boundary from now."),
		mcp.WithString("account",
			mcp.Description("Account whose calendar access is used (default: the server's default account)."),
		),
		mcp.WithString("participants",
			mcp.Required(),
			mcp.Description("Comma-separated list of participant email addresses or calendar IDs"),
		),
		mcp.WithNumber("slotLength",
			mcp.Required(),
			mcp.Description("Meeting length in minutes (5 to 480)"),
		),
		mcp.WithNumber("weeks",
			mcp.Description("Number of weeks to search, starting now (1 to 4, default: 1)"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of slots to list (default: 10)"),
		),
	)

	s.AddTool(tool, common.InstrumentedToolHandler(FindFreeSlotsTool, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindFreeSlots(ctx, request, sc)
		}))

	return nil
}

func handleFindFreeSlots(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args, sc.DefaultAccount())

	participants, err := common.ParseStringList(args["participants"], "participants")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slotLength, err := common.IntArg(args, "slotLength", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if slotLength == 0 {
		return mcp.NewToolResultError("slotLength is required"), nil
	}

	weeks, err := common.IntArg(args, "weeks", defaultWeeks)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	maxResults, err := common.IntArg(args, "maxResults", defaultMaxResults)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	svc, err := sc.FinderForAccount(account)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Calendar access is not available for account %q: %v", account, err)), nil
	}

	res, err := svc.FindFreeSlots(ctx, finder.Request{
		Participants:      participants,
		SlotLengthMinutes: slotLength,
		SpanWeeks:         weeks,
	})
	if err != nil {
		switch finder.KindOf(err) {
		case finder.KindInvalidArgument:
			return mcp.NewToolResultError(fmt.Sprintf("Invalid request: %v", err)), nil
		case finder.KindUpstreamUnavailable:
			return mcp.NewToolResultError(fmt.Sprintf("Calendar data unavailable: %v", err)), nil
		default:
			return nil, err
		}
	}

	return mcp.NewToolResultText(renderResult(res, slotLength, maxResults, sc.Location())), nil
}

func renderResult(res finder.Result, slotLength, maxResults int, loc *time.Location) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Found %d free %d-minute slot(s) for %d participant(s) between %s and %s.\n\n",
		len(res.Slots), slotLength, len(res.Participants),
		res.Window.Start.In(loc).Format(format.PreviewLayout),
		res.Window.End.In(loc).Format(format.PreviewLayout))

	shown := res.Slots
	if len(shown) > maxResults {
		shown = shown[:maxResults]
	}
	b.WriteString(format.Text(shown, loc))

	if rest := len(res.Slots) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "... and %d more\n", rest)
	}
	fmt.Fprintf(&b, "\nTimes are in %s. Search ID: %s\n", loc, res.SearchID)
	return b.String()
}
