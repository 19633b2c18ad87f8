package config

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

// NewLLMForTest creates an LLM config for testing purposes
func NewLLMForTest(provider, embeddingProvider, geminiProject, openaiAPIKey, claudeAPIKey string) *LLM {
	return &LLM{
		provider:          provider,
		embeddingProvider: embeddingProvider,
		geminiProject:     geminiProject,
		openaiAPIKey:      openaiAPIKey,
		claudeAPIKey:      claudeAPIKey,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID, milvusAddr string) *Repository {
	return &Repository{backend: backend, projectID: projectID, milvusAddr: milvusAddr}
}

// NewSessionForTest creates a Session config for testing purposes
func NewSessionForTest(backend, redisURL string) *Session {
	return &Session{backend: backend, redisURL: redisURL}
}
