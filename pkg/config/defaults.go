package config

// defaultConfig returns the built-in defaults applied before
// environment overrides (spec §6: sandbox TTL 30 minutes, JWT
// expiries, auth hash rounds 10).
func defaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Storage: StorageConfig{
			FileStoragePath: "./data/files",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Sandbox: SandboxConfig{
			NamePrefix: "agentcore-sandbox-",
			TTLMinutes: 30,
		},
		Search: SearchConfig{
			Provider: SearchProviderGoogle,
		},
		Auth: AuthConfig{
			Provider:           AuthProviderNone,
			PasswordHashRounds: 10,
		},
		JWT: JWTConfig{
			Algorithm:                "HS256",
			AccessTokenExpireMinutes: 30,
			RefreshTokenExpireDays:   7,
		},
		MCP: MCPConfig{
			ConfigPath: "./config/mcp_servers.yaml",
		},
	}
}
