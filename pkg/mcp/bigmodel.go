package mcp

import (
	"strconv"
	"strings"

	"github.com/opsforge/agentcore/pkg/config"
)

// bigModelCanonical force-normalizes the four well-known BigModel MCP
// servers regardless of what a user config supplies for them: their
// transport and endpoint are fixed, only enable/disable and bearer
// token are user-controlled.
type bigModelCanonical struct {
	transport config.TransportType
	url       string
	command   string
	args      []string
}

var bigModelCanonicalServers = map[string]bigModelCanonical{
	"bigmodel_search": {
		transport: config.TransportTypeStreamableHTTP,
		url:       "https://open.bigmodel.cn/api/mcp/web_search_prime/mcp",
	},
	"bigmodel_reader": {
		transport: config.TransportTypeStreamableHTTP,
		url:       "https://open.bigmodel.cn/api/mcp/web_reader/mcp",
	},
	"bigmodel_zread": {
		transport: config.TransportTypeStreamableHTTP,
		url:       "https://open.bigmodel.cn/api/mcp/zread/mcp",
	},
	"bigmodel_vision": {
		transport: config.TransportTypeStdio,
		command:   "npx",
		args:      []string{"-y", "@z_ai/mcp-server"},
	},
}

// normalizeBigModelServerConfig overwrites the transport/endpoint fields of
// a known BigModel server with its canonical values, in place. Unknown
// servers are left untouched.
func normalizeBigModelServerConfig(serverID string, cfg *config.TransportConfig) {
	canonical, ok := bigModelCanonicalServers[serverID]
	if !ok {
		return
	}
	cfg.Type = canonical.transport
	if canonical.url != "" {
		cfg.URL = canonical.url
	}
	if canonical.command != "" {
		cfg.Command = canonical.command
		cfg.Args = canonical.args
	}
}

// sanitizeHeaders drops empty header values and a bare/tokenless
// Authorization: Bearer header, so it never reaches the wire as an
// invalid credential.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	cleaned := make(map[string]string, len(headers))
	for k, v := range headers {
		text := strings.TrimSpace(v)
		if text == "" {
			continue
		}
		if strings.EqualFold(k, "Authorization") {
			lower := strings.ToLower(text)
			if lower == "bearer" || lower == "bearer:" {
				continue
			}
			if strings.HasPrefix(lower, "bearer ") && strings.TrimSpace(text[len("bearer "):]) == "" {
				continue
			}
		}
		cleaned[k] = text
	}
	return cleaned
}

// isBigModelConnectable reports whether a known BigModel HTTP-family server
// has a usable bearer token. Non-BigModel servers and stdio transports are
// always connectable from this check's point of view.
func isBigModelConnectable(serverID string, cfg config.TransportConfig) bool {
	if !strings.HasPrefix(serverID, "bigmodel_") {
		return true
	}
	if cfg.Type != config.TransportTypeSSE && cfg.Type != config.TransportTypeHTTP &&
		cfg.Type != config.TransportTypeStreamableHTTP {
		return true
	}
	return strings.TrimSpace(cfg.BearerToken) != ""
}

// BigModel Search's official MCP argument schema. Extra or aliased keys
// cause unstable or empty responses from the upstream server.
var bigModelSearchAllowed = map[string]bool{
	"search_query":          true,
	"search_domain_filter":  true,
	"search_recency_filter": true,
	"content_size":          true,
	"location":              true,
}

var bigModelSearchRecency = map[string]bool{
	"oneDay": true, "oneWeek": true, "oneMonth": true, "oneYear": true, "noLimit": true,
}

var bigModelSearchRecencyAliases = map[string]string{
	"past_day": "oneDay", "day": "oneDay",
	"past_week": "oneWeek", "week": "oneWeek",
	"past_month": "oneMonth", "month": "oneMonth",
	"past_year": "oneYear", "year": "oneYear",
}

var bigModelSearchContentSize = map[string]bool{"medium": true, "high": true}
var bigModelSearchLocation = map[string]bool{"cn": true, "us": true}

const bigModelSearchQueryMaxLen = 70

var bigModelReaderAllowed = map[string]bool{
	"url": true, "timeout": true, "no_cache": true, "return_format": true,
	"retain_images": true, "no_gfm": true, "keep_img_data_url": true,
	"with_images_summary": true, "with_links_summary": true,
}

// normalizeBigModelArguments rewrites tool-call arguments to the BigModel
// Search/Reader servers' official schema: alias mapping, key whitelisting,
// and value clamping. Any other server's arguments pass through unchanged.
func normalizeBigModelArguments(serverID, toolName string, args map[string]any) map[string]any {
	switch {
	case serverID == "bigmodel_search" && toolName == "webSearchPrime":
		return normalizeBigModelSearchArgs(args)
	case serverID == "bigmodel_reader" && toolName == "webReader":
		return normalizeBigModelReaderArgs(args)
	default:
		return args
	}
}

func normalizeBigModelSearchArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	aliasInto(out, "search_query", "query", "keyword", "q")
	aliasInto(out, "search_domain_filter", "domain", "site")
	if aliasInto(out, "search_recency_filter", "date_range", "recency", "time_range") {
		if s, ok := out["search_recency_filter"].(string); ok {
			if mapped, known := bigModelSearchRecencyAliases[strings.TrimSpace(s)]; known {
				out["search_recency_filter"] = mapped
			}
		}
	}

	// Keep only the official schema keys.
	for k, v := range out {
		if !bigModelSearchAllowed[k] || isEmptyArg(v) {
			delete(out, k)
		}
	}

	q := strings.TrimSpace(asString(out["search_query"]))
	if len(q) > bigModelSearchQueryMaxLen {
		q = q[:bigModelSearchQueryMaxLen]
	}
	out["search_query"] = q

	if v, ok := out["search_recency_filter"]; ok {
		if !bigModelSearchRecency[strings.TrimSpace(asString(v))] {
			delete(out, "search_recency_filter")
		}
	}
	if v, ok := out["content_size"]; ok && bigModelSearchContentSize[strings.TrimSpace(asString(v))] {
		// keep as-is
	} else {
		out["content_size"] = "high"
	}
	if v, ok := out["location"]; ok && !bigModelSearchLocation[strings.ToLower(strings.TrimSpace(asString(v)))] {
		delete(out, "location")
	}

	return out
}

func normalizeBigModelReaderArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	aliasInto(out, "url", "link", "uri")

	for k, v := range out {
		if !bigModelReaderAllowed[k] || isEmptyArg(v) {
			delete(out, k)
		}
	}
	if _, ok := out["return_format"]; !ok {
		out["return_format"] = "markdown"
	}
	return out
}

// aliasInto sets dst[key] from the first non-blank value found among
// aliases, unless key is already present. Returns true if the alias
// fired (key was newly populated from an alias).
func aliasInto(args map[string]any, key string, aliases ...string) bool {
	if v, ok := args[key]; ok && !isEmptyArg(v) {
		return false
	}
	for _, alias := range aliases {
		if v, ok := args[alias]; ok && !isEmptyArg(v) {
			args[key] = v
			return true
		}
	}
	return false
}

func isEmptyArg(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
