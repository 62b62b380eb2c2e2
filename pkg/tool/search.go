package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/opsforge/agentcore/pkg/config"
	"github.com/opsforge/agentcore/pkg/model"
)

const searchSchema = `{"type":"object","properties":{` +
	`"query":{"type":"string","description":"search query"}` +
	`},"required":["query"]}`

// searchResult is one hit returned by a Provider, copied verbatim into
// ToolResult.Data (and later into tool_content by the Task Runner's
// enrichment pass, spec §4.5).
type searchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Provider performs one web search and returns its hits.
type Provider interface {
	Search(ctx context.Context, query string) ([]searchResult, error)
}

// SearchTool is the built-in "search" tool (spec §6 Search option
// group), delegating to whichever Provider the configured
// search_provider selects.
type SearchTool struct {
	provider Provider
}

// NewSearchTool builds a SearchTool for the given provider kind and
// Google credentials (ignored by baidu/bing).
func NewSearchTool(cfg config.SearchConfig, httpClient *http.Client) *SearchTool {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	var p Provider
	switch cfg.Provider {
	case config.SearchProviderGoogle:
		p = &googleProvider{apiKey: cfg.GoogleSearchAPIKey, engineID: cfg.GoogleSearchEngine, client: httpClient}
	case config.SearchProviderBing:
		p = &scrapeProvider{client: httpClient, endpoint: "https://www.bing.com/search", queryParam: "q"}
	default:
		p = &scrapeProvider{client: httpClient, endpoint: "https://www.baidu.com/s", queryParam: "wd"}
	}
	return &SearchTool{provider: p}
}

func (t *SearchTool) Name() string        { return "search" }
func (t *SearchTool) Description() string { return "Search the web for a query." }
func (t *SearchTool) Schema() string      { return searchSchema }

func (t *SearchTool) Invoke(ctx context.Context, argsJSON string) (*model.ToolResult, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	if args.Query == "" {
		return errorResult("'query' is required"), nil
	}

	results, err := t.provider.Search(ctx, args.Query)
	if err != nil {
		return errorResult("search failed: %v", err), nil
	}
	if len(results) == 0 {
		return &model.ToolResult{Success: false, Message: "no results found"}, nil
	}
	return &model.ToolResult{
		Success: true,
		Message: fmt.Sprintf("%d results", len(results)),
		Data:    map[string]any{"results": results},
	}, nil
}

// googleCustomSearchEndpoint is the documented Google Programmable
// Search JSON API (https://developers.google.com/custom-search/v1/overview).
const googleCustomSearchEndpoint = "https://www.googleapis.com/customsearch/v1"

// googleProvider uses the Google Programmable Search JSON API.
// endpoint is overridable so tests can point it at a local server.
type googleProvider struct {
	apiKey   string
	engineID string
	endpoint string
	client   *http.Client
}

func (p *googleProvider) Search(ctx context.Context, query string) ([]searchResult, error) {
	if p.apiKey == "" || p.engineID == "" {
		return nil, fmt.Errorf("google search requires api key and engine id")
	}
	endpoint := p.endpoint
	if endpoint == "" {
		endpoint = googleCustomSearchEndpoint
	}
	u := fmt.Sprintf("%s?key=%s&cx=%s&q=%s", endpoint,
		url.QueryEscape(p.apiKey), url.QueryEscape(p.engineID), url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google search: status %d", resp.StatusCode)
	}

	var body struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]searchResult, 0, len(body.Items))
	for _, item := range body.Items {
		out = append(out, searchResult{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return out, nil
}

var linkTitleRE = regexp.MustCompile(`(?is)<a[^>]+href="(https?://[^"]+)"[^>]*>(.*?)</a>`)
var tagStripRE = regexp.MustCompile(`(?is)<[^>]+>`)

// scrapeProvider is a minimal HTML-result-page scraper for engines
// (Baidu, Bing) with no official free JSON API in the config surface
// (spec §6 only names credentials for Google). Best-effort: it extracts
// anchor text/href pairs and strips markup, accepting noisier results
// than a dedicated API client would give.
type scrapeProvider struct {
	client     *http.Client
	endpoint   string
	queryParam string
}

func (p *scrapeProvider) Search(ctx context.Context, query string) ([]searchResult, error) {
	u := fmt.Sprintf("%s?%s=%s", p.endpoint, p.queryParam, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; agentcore/1.0)")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %s: status %d", p.endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var out []searchResult
	for _, m := range linkTitleRE.FindAllStringSubmatch(string(body), 20) {
		title := tagStripRE.ReplaceAllString(m[2], "")
		if title == "" {
			continue
		}
		out = append(out, searchResult{Title: title, URL: m[1]})
	}
	return out, nil
}
