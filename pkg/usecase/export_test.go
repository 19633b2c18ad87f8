package usecase

// BuildQuerySystemPrompt is exported for testing
var BuildQuerySystemPrompt = buildQuerySystemPrompt
