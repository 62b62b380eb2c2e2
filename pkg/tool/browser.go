package tool

import (
	"context"
	"encoding/json"

	"github.com/opsforge/agentcore/pkg/browser"
	"github.com/opsforge/agentcore/pkg/model"
)

const browserSchema = `{"type":"object","properties":{` +
	`"url":{"type":"string","description":"URL to navigate to"}` +
	`},"required":["url"]}`

// BrowserTool navigates the session's headless browser to a URL. The
// screenshot-on-Called enrichment is the Task Runner's job (spec §4.5);
// this tool only drives navigation.
type BrowserTool struct {
	br browser.Browser
}

// NewBrowserTool builds a BrowserTool bound to br.
func NewBrowserTool(br browser.Browser) *BrowserTool { return &BrowserTool{br: br} }

func (t *BrowserTool) Name() string        { return "browser" }
func (t *BrowserTool) Description() string { return "Navigate the headless browser to a URL." }
func (t *BrowserTool) Schema() string      { return browserSchema }

func (t *BrowserTool) Invoke(ctx context.Context, argsJSON string) (*model.ToolResult, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	if args.URL == "" {
		return errorResult("'url' is required"), nil
	}

	if err := t.br.Navigate(ctx, args.URL); err != nil {
		return errorResult("navigate failed: %v", err), nil
	}
	return &model.ToolResult{Success: true, Message: "navigated", Data: map[string]any{"url": args.URL}}, nil
}
