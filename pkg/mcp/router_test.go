package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeToolName(t *testing.T) {
	tests := []struct {
		name     string
		server   string
		tool     string
		expected string
	}{
		{name: "plain server", server: "github", tool: "list_issues", expected: "mcp_github_list_issues"},
		{name: "bigmodel server", server: "bigmodel_search", tool: "webSearchPrime", expected: "mcp_bigmodel_search_webSearchPrime"},
		{name: "server already prefixed", server: "mcp_custom", tool: "do_thing", expected: "mcp_custom_do_thing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComposeToolName(tt.server, tt.tool))
		})
	}
}

func TestSplitToolName(t *testing.T) {
	knownServers := []string{"github", "bigmodel_search", "bigmodel_reader", "mcp_custom"}

	tests := []struct {
		name       string
		input      string
		wantServer string
		wantTool   string
		wantErr    bool
	}{
		{
			name:       "simple server",
			input:      "mcp_github_list_issues",
			wantServer: "github",
			wantTool:   "list_issues",
		},
		{
			name:       "underscored server name resolved against known list",
			input:      "mcp_bigmodel_search_webSearchPrime",
			wantServer: "bigmodel_search",
			wantTool:   "webSearchPrime",
		},
		{
			name:       "server already carrying mcp_ prefix",
			input:      "mcp_custom_do_thing",
			wantServer: "mcp_custom",
			wantTool:   "do_thing",
		},
		{
			name:    "missing prefix",
			input:   "github_list_issues",
			wantErr: true,
		},
		{
			name:    "unknown server",
			input:   "mcp_unknown_tool",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, tool, err := SplitToolName(tt.input, knownServers)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, server)
				assert.Empty(t, tool)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantServer, server)
			assert.Equal(t, tt.wantTool, tool)
		})
	}
}
