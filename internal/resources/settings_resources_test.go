package resources

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/timeslotseeker/internal/finder"
	"github.com/teemow/timeslotseeker/internal/server"
)

func newContext(t *testing.T, cfg finder.Config) *server.ServerContext {
	t.Helper()
	static := finder.NewStaticSource(nil)
	sc, err := server.NewServerContext(context.Background(),
		func(context.Context, string) (finder.BusySource, error) { return static, nil },
		cfg,
		server.WithDefaultAccount("work"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestHandleSearchSettings(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	cfg := finder.DefaultConfig()
	cfg.Slots.Location = berlin
	cfg.Slots.WorkStartHour = 8
	cfg.MaxSpanWeeks = 2
	cfg.SourceName = "static"

	sc := newContext(t, cfg)

	request := mcp.ReadResourceRequest{}
	request.Params.URI = SearchSettingsURI

	contents, err := handleSearchSettings(context.Background(), request, sc)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(*mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, SearchSettingsURI, text.URI)
	assert.Equal(t, "application/json", text.MIMEType)

	var got SearchSettings
	require.NoError(t, json.Unmarshal([]byte(text.Text), &got))
	assert.Equal(t, SearchSettings{
		DefaultAccount:       "work",
		Source:               "static",
		TimeZone:             "Europe/Berlin",
		WorkStartHour:        8,
		WorkEndHour:          17,
		MinSlotLengthMinutes: 5,
		MaxSlotLengthMinutes: 480,
		MinWeeks:             1,
		MaxWeeks:             2,
		LookupTimeout:        "30s",
	}, got)
}

func TestSearchSettings_NoTimeout(t *testing.T) {
	cfg := finder.DefaultConfig()
	cfg.LookupTimeout = 0

	got := searchSettings(newContext(t, cfg))
	assert.Equal(t, "none", got.LookupTimeout)
	assert.Equal(t, "UTC", got.TimeZone)
}

func TestRegisterSettingsResources(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "1.0.0", mcpserver.WithResourceCapabilities(false, false))
	require.NoError(t, RegisterSettingsResources(s, newContext(t, finder.DefaultConfig())))

	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`))

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), SearchSettingsURI)

	assert.Error(t, RegisterSettingsResources(s, nil))
}
