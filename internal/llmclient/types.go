package llmclient

import "time"

// Role of a chat turn as sent to the provider.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one {role, content} pair of the provider-bound history.
type Message struct {
	Role    Role
	Content string
}

// DefaultTimeout bounds a single streaming exchange with a provider.
const DefaultTimeout = 120 * time.Second

// ProviderConfig is everything a Provider needs; it is copied in at
// construction so adapters never read process-wide settings.
type ProviderConfig struct {
	// Name is a short identifier used in logs and metrics, e.g. "minimax".
	Name string
	// DisplayName is used in user-visible error text, e.g. "MINIMAX AI".
	DisplayName string
	// KeyName names the setting that holds the API key, for the
	// missing-credential message.
	KeyName string
	// KeyOwner names the vendor in the missing-credential message; it
	// defaults to DisplayName.
	KeyOwner     string
	APIBase      string
	APIKey       string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
	ProxyURL     string
}
