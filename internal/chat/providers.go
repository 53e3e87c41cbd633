package chat

import "github.com/secretaria-app/secretaria/internal/llmclient"

// NewProviders builds the provider pair from adapter settings and gives each
// its system prompt.
func NewProviders(primary, search llmclient.ProviderConfig) Providers {
	primary.SystemPrompt = SystemPrompt
	search.SystemPrompt = SearchSystemPrompt
	return Providers{
		Primary: llmclient.NewProvider(primary),
		Search:  llmclient.NewProvider(search),
	}
}
