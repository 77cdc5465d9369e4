package config

// DefaultConfig returns the built-in configuration used before any file
// or environment override.
func DefaultConfig() *Config {
	return &Config{
		DataDirectory: "~/.local/share/ember",
		OllamaHost:    "http://localhost:11434",
		ContainerURL:  "http://localhost:8080/v1",
		DefaultModel:  "llama3.2:3b",
	}
}

// GenerateConfigTemplate is the commented config file written on first
// run.
func GenerateConfigTemplate() string {
	return `# Ember configuration.

# Where conversations and the search index live.
data_directory = "~/.local/share/ember"

# Session backend: local Ollama daemon.
ollama_host = "http://localhost:11434"

# Container backend: llama.cpp-style OpenAI-compatible server.
container_url = "http://localhost:8080/v1"

# Model to load on startup (must exist in models.toml).
default_model = "llama3.2:3b"
`
}
