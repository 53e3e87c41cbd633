package chat

import (
	"strings"
	"unicode/utf8"

	"github.com/secretaria-app/secretaria/internal/constant"
	"github.com/secretaria-app/secretaria/internal/data/db"
	"github.com/secretaria-app/secretaria/internal/llmclient"
)

const titleMaxRunes = 50

// DisplayText is what gets stored and shown for a user turn.
func DisplayText(content string, hasFiles bool) string {
	if strings.TrimSpace(content) == "" && hasFiles {
		return constant.AttachmentPlaceholder
	}
	return content
}

// ProviderText is what the provider sees for a stored turn. Attached files
// contribute their extracted text, or a filename placeholder when none was
// extracted; the display placeholder itself is never sent.
func ProviderText(m db.Message) string {
	if len(m.Files) == 0 {
		return m.Content
	}
	parts := make([]string, 0, len(m.Files)+1)
	for _, f := range m.Files {
		if text := f.Text(); text != "" {
			parts = append(parts, text)
		} else {
			parts = append(parts, "[Archivo: "+f.Filename+"]")
		}
	}
	if text := strings.TrimSpace(m.Content); text != "" && m.Content != constant.AttachmentPlaceholder {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n")
}

// BuildHistory returns the provider-bound messages: the system prompt first,
// then the stored turns in the order given.
func BuildHistory(systemPrompt string, turns []db.Message) []llmclient.Message {
	out := make([]llmclient.Message, 0, len(turns)+1)
	out = append(out, llmclient.Message{Role: llmclient.RoleSystem, Content: systemPrompt})
	for _, m := range turns {
		role := llmclient.RoleUser
		switch m.Role {
		case db.RoleAssistant:
			role = llmclient.RoleAssistant
		case db.RoleSystem:
			role = llmclient.RoleSystem
		}
		out = append(out, llmclient.Message{Role: role, Content: ProviderText(m)})
	}
	return out
}

// MakeTitle derives a conversation title from the first turn: the first 50
// characters of the text, or of the first filename when there is no text.
func MakeTitle(content string, files []db.File) string {
	source := content
	if strings.TrimSpace(source) == "" {
		if len(files) == 0 {
			return ""
		}
		source = files[0].Filename
	}
	if utf8.RuneCountInString(source) <= titleMaxRunes {
		return strings.TrimSpace(source)
	}
	return strings.TrimSpace(string([]rune(source)[:titleMaxRunes])) + "..."
}
