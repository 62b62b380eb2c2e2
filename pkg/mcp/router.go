package mcp

import (
	"fmt"
	"strings"
)

// toolNamePrefix is prepended to every exposed tool name so an LLM can tell
// an MCP-backed tool apart from a built-in one at a glance.
const toolNamePrefix = "mcp_"

// ComposeToolName builds the externally-visible tool name for a server's
// tool, taking care not to double up the "mcp_" prefix when a server's own
// ID is already prefixed with it (e.g. a user server literally named
// "mcp_custom").
func ComposeToolName(serverID, toolName string) string {
	if strings.HasPrefix(serverID, toolNamePrefix) {
		return fmt.Sprintf("%s_%s", serverID, toolName)
	}
	return fmt.Sprintf("%s%s_%s", toolNamePrefix, serverID, toolName)
}

// SplitToolName parses a composed "mcp_<server>_<tool>" name back into its
// (serverID, toolName) parts. knownServerIDs is consulted so a server ID
// containing underscores (e.g. "bigmodel_search") is resolved correctly
// instead of splitting on the first underscore.
func SplitToolName(name string, knownServerIDs []string) (serverID, toolName string, err error) {
	if !strings.HasPrefix(name, toolNamePrefix) {
		return "", "", fmt.Errorf(
			"invalid tool name %q: must start with %q", name, toolNamePrefix)
	}
	rest := strings.TrimPrefix(name, toolNamePrefix)

	// Prefer the longest known server ID that is a prefix of rest, so
	// "bigmodel_search_webSearchPrime" resolves to server "bigmodel_search"
	// rather than "bigmodel".
	best, bestID := "", ""
	for _, id := range knownServerIDs {
		expected := id
		if strings.HasPrefix(id, toolNamePrefix) {
			// ComposeToolName does not repeat the prefix, so it is already
			// stripped from rest.
			expected = strings.TrimPrefix(id, toolNamePrefix)
		}
		prefix := expected + "_"
		if strings.HasPrefix(rest, prefix) && len(expected) > len(best) {
			best, bestID = expected, id
		}
	}
	if bestID == "" {
		return "", "", fmt.Errorf("unable to resolve MCP tool name %q against known servers", name)
	}

	return bestID, strings.TrimPrefix(rest, best+"_"), nil
}
