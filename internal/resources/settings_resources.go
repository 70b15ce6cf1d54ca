package resources

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/timeslotseeker/internal/server"
)

// SearchSettingsURI identifies the search settings resource.
const SearchSettingsURI = "timeslotseeker://search/settings"

// SearchSettings is the JSON body of the search settings resource.
type SearchSettings struct {
	DefaultAccount       string `json:"default_account"`
	Source               string `json:"source,omitempty"`
	TimeZone             string `json:"timezone"`
	WorkStartHour        int    `json:"work_start_hour"`
	WorkEndHour          int    `json:"work_end_hour"`
	MinSlotLengthMinutes int    `json:"min_slot_length_minutes"`
	MaxSlotLengthMinutes int    `json:"max_slot_length_minutes"`
	MinWeeks             int    `json:"min_weeks"`
	MaxWeeks             int    `json:"max_weeks"`
	LookupTimeout        string `json:"lookup_timeout"`
}

// RegisterSettingsResources registers the search settings resource.
func RegisterSettingsResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if sc == nil {
		return fmt.Errorf("server context is required")
	}

	settingsResource := mcp.NewResource(
		SearchSettingsURI,
		"Search Settings",
		mcp.WithResourceDescription("Working hours, time zone and accepted request bounds used by the free slot search"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(settingsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSearchSettings(ctx, request, sc)
	})

	return nil
}

// searchSettings snapshots the configuration of sc.
func searchSettings(sc *server.ServerContext) SearchSettings {
	cfg := sc.FinderConfig()
	loc := sc.Location()
	if cfg.Slots.Location != nil {
		loc = cfg.Slots.Location
	}

	timeout := "none"
	if cfg.LookupTimeout > 0 {
		timeout = cfg.LookupTimeout.String()
	}

	return SearchSettings{
		DefaultAccount:       sc.DefaultAccount(),
		Source:               cfg.SourceName,
		TimeZone:             loc.String(),
		WorkStartHour:        cfg.Slots.WorkStartHour,
		WorkEndHour:          cfg.Slots.WorkEndHour,
		MinSlotLengthMinutes: cfg.MinSlotLengthMinutes,
		MaxSlotLengthMinutes: cfg.MaxSlotLengthMinutes,
		MinWeeks:             cfg.MinSpanWeeks,
		MaxWeeks:             cfg.MaxSpanWeeks,
		LookupTimeout:        timeout,
	}
}

func handleSearchSettings(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(searchSettings(sc), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search settings: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
