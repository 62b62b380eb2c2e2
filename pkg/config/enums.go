package config

// TransportType defines MCP server transport types.
type TransportType string

const (
	// TransportTypeStdio uses subprocess communication via stdin/stdout.
	TransportTypeStdio TransportType = "stdio"
	// TransportTypeHTTP uses plain HTTP/HTTPS JSON-RPC (legacy, SSE-based).
	TransportTypeHTTP TransportType = "http"
	// TransportTypeSSE uses Server-Sent Events.
	TransportTypeSSE TransportType = "sse"
	// TransportTypeStreamableHTTP uses the MCP streamable-HTTP transport.
	// Wired the same as TransportTypeHTTP on the SDK side (both resolve to
	// mcpsdk.StreamableClientTransport); kept distinct so config and the
	// BigModel canonical-server table can name it explicitly.
	TransportTypeStreamableHTTP TransportType = "streamable-http"
)

// IsValid checks if the transport type is valid.
func (t TransportType) IsValid() bool {
	return t == TransportTypeStdio || t == TransportTypeHTTP || t == TransportTypeSSE ||
		t == TransportTypeStreamableHTTP
}

// SearchProvider names a supported web-search backend (spec §6).
type SearchProvider string

const (
	SearchProviderBaidu  SearchProvider = "baidu"
	SearchProviderGoogle SearchProvider = "google"
	SearchProviderBing   SearchProvider = "bing"
)

// IsValid checks if the search provider is valid.
func (p SearchProvider) IsValid() bool {
	return p == SearchProviderBaidu || p == SearchProviderGoogle || p == SearchProviderBing
}

// AuthProvider names a supported authentication backend (spec §6).
type AuthProvider string

const (
	AuthProviderPassword AuthProvider = "password"
	AuthProviderNone     AuthProvider = "none"
	AuthProviderLocal    AuthProvider = "local"
)

// IsValid checks if the auth provider is valid.
func (p AuthProvider) IsValid() bool {
	return p == AuthProviderPassword || p == AuthProviderNone || p == AuthProviderLocal
}
