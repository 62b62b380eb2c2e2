package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opsforge/agentcore/pkg/agent"
	"github.com/opsforge/agentcore/pkg/config"
)

// maxDeepJSONPasses bounds the number of nested json.Unmarshal attempts
// applied to a flattened tool result: some MCP servers (BigModel's in
// particular) return a JSON string that itself decodes to another JSON
// string one or more times.
const maxDeepJSONPasses = 4

// Compile-time check that ToolExecutor implements agent.ToolExecutor.
var _ agent.ToolExecutor = (*ToolExecutor)(nil)

// ToolExecutor implements agent.ToolExecutor backed by real MCP servers.
// Created per-session by ClientFactory.
type ToolExecutor struct {
	client   *Client
	registry *config.MCPServerRegistry

	// Resolved list of server IDs this executor can access.
	serverIDs []string

	// Optional tool filter per server (from MCP selection override).
	// nil means all tools for that server are available.
	toolFilter map[string][]string // serverID → allowed tool names (nil = all)
}

// NewToolExecutor creates a new executor for the given servers.
func NewToolExecutor(
	client *Client,
	registry *config.MCPServerRegistry,
	serverIDs []string,
	toolFilter map[string][]string,
) *ToolExecutor {
	return &ToolExecutor{
		client:     client,
		registry:   registry,
		serverIDs:  serverIDs,
		toolFilter: toolFilter,
	}
}

// Execute runs a tool call via MCP.
//
// Flow:
//  1. Split and validate the "mcp_<server>_<tool>" name
//  2. Check server is in allowed serverIDs
//  3. Check tool is in allowed tools (if filter set)
//  4. Parse Arguments string into map[string]any
//  5. Normalize arguments for BigModel servers (alias mapping, whitelisting)
//  6. Call Client.CallTool(ctx, serverID, toolName, params)
//  7. Flatten result content, then attempt nested JSON decoding
//  8. Special-case BigModel Search returning an empty list as a failure
//  9. Return ToolResult
func (e *ToolExecutor) Execute(ctx context.Context, call agent.ToolCall) (*agent.ToolResult, error) {
	// Step 1-3: Route and validate
	serverID, toolName, err := e.resolveToolCall(call.Name)
	if err != nil {
		return &agent.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: err.Error(),
			IsError: true,
		}, nil // Return error as content, not as Go error (MCP convention)
	}

	// Step 4: Parse arguments
	params, err := ParseActionInput(call.Arguments)
	if err != nil {
		return &agent.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("Failed to parse tool arguments: %s", err),
			IsError: true,
		}, nil
	}

	// Step 5: BigModel argument normalization (no-op for other servers)
	params = normalizeBigModelArguments(serverID, toolName, params)

	// Step 6: Execute via MCP
	result, err := e.client.CallTool(ctx, serverID, toolName, params)
	if err != nil {
		return &agent.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("MCP tool execution failed: %s", err),
			IsError: true,
		}, nil
	}

	// Step 7: Flatten and deep-decode
	flattened := extractTextContent(result)
	decoded := parseDeepJSON(flattened, maxDeepJSONPasses)

	// Step 8: BigModel Search occasionally returns "[]" for a query with no
	// hits. Report it as a failure so the caller's next move is a fallback
	// search rather than looping on an empty result.
	if serverID == "bigmodel_search" {
		if list, ok := decoded.([]any); ok && len(list) == 0 {
			return &agent.ToolResult{
				CallID: call.ID,
				Name:   call.Name,
				Content: "BigModel Search MCP returned empty results. " +
					"Fall back to the built-in search tool, then use MCP Reader for URL extraction.",
				IsError: true,
			}, nil
		}
	}

	return &agent.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: flattened,
		IsError: result.IsError,
	}, nil
}

// ListTools returns all available tools from configured MCP servers.
// Tools are returned with ComposeToolName names (e.g., "mcp_kubernetes_get_pods").
func (e *ToolExecutor) ListTools(ctx context.Context) ([]agent.ToolDefinition, error) {
	var allTools []agent.ToolDefinition

	for _, serverID := range e.serverIDs {
		tools, err := e.client.ListTools(ctx, serverID)
		if err != nil {
			// Log error but continue — partial tools are better than none
			slog.Warn("Failed to list tools from MCP server",
				"server", serverID, "error", err)
			continue
		}

		for _, tool := range tools {
			// Apply tool filter if set
			if filter, ok := e.toolFilter[serverID]; ok && len(filter) > 0 {
				if !slices.Contains(filter, tool.Name) {
					continue
				}
			}

			allTools = append(allTools, agent.ToolDefinition{
				Name:             ComposeToolName(serverID, tool.Name),
				Description:      tool.Description,
				ParametersSchema: marshalSchema(tool.InputSchema),
			})
		}
	}

	if len(allTools) == 0 {
		return nil, nil // Consistent with StubToolExecutor contract
	}
	return allTools, nil
}

// Close releases resources (MCP transports, subprocesses).
func (e *ToolExecutor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// resolveToolCall validates a tool call against the executor's configuration.
func (e *ToolExecutor) resolveToolCall(name string) (serverID, toolName string, err error) {
	serverID, toolName, err = SplitToolName(name, e.serverIDs)
	if err != nil {
		return "", "", err
	}

	// Check server is in allowed list
	if !slices.Contains(e.serverIDs, serverID) {
		return "", "", fmt.Errorf(
			"MCP server %q is not available for this execution. "+
				"Available servers: %s", serverID, strings.Join(e.serverIDs, ", "))
	}

	// Check tool filter (per-alert MCP selection)
	if filter, ok := e.toolFilter[serverID]; ok && len(filter) > 0 {
		if !slices.Contains(filter, toolName) {
			return "", "", fmt.Errorf(
				"tool %q is not available on server %q. "+
					"Available tools: %s", toolName, serverID, strings.Join(filter, ", "))
		}
	}

	return serverID, toolName, nil
}

// extractTextContent extracts text from MCP CallToolResult.
// Concatenates all TextContent items. Non-text content (images, embedded
// resources) is logged at debug level and skipped.
func extractTextContent(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		} else {
			slog.Debug("MCP tool returned non-text content, skipping",
				"content_type", fmt.Sprintf("%T", c))
		}
	}
	return strings.Join(parts, "\n")
}

// parseDeepJSON attempts up to maxPasses nested json.Unmarshal calls on a
// string value, stopping as soon as a pass doesn't change the value or the
// value stops being a string. Used only to detect shapes like a
// JSON-encoded-empty-list-encoded-as-a-string; the original flattened text
// is still what gets stored as the tool result.
func parseDeepJSON(value string, maxPasses int) any {
	var current any = value
	for i := 0; i < maxPasses; i++ {
		text, ok := current.(string)
		if !ok {
			break
		}
		text = strings.TrimSpace(text)
		if text == "" {
			break
		}
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			break
		}
		if reflectEqual(parsed, current) {
			break
		}
		current = parsed
	}
	return current
}

// reflectEqual reports whether a freshly-decoded JSON value is identical to
// the string it came from, which only happens when decoding a bare JSON
// string literal back into itself (no further unwrapping possible).
func reflectEqual(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	return aok && bok && as == bs
}

// marshalSchema serializes a tool's InputSchema to a JSON string.
func marshalSchema(schema any) string {
	if schema == nil {
		return ""
	}
	data, err := json.Marshal(schema)
	if err != nil {
		slog.Debug("Failed to marshal tool input schema", "error", err)
		return ""
	}
	return string(data)
}
