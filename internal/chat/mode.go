package chat

// Mode selects the system prompt and provider for one turn.
type Mode string

const (
	ModePlain    Mode = "plain"
	ModeSearch   Mode = "search"
	ModeDocument Mode = "document"
)

// ResolveMode maps the request flags to a mode. Document generation wins
// over search; plain is the default.
func ResolveMode(search, document bool) Mode {
	switch {
	case document:
		return ModeDocument
	case search:
		return ModeSearch
	default:
		return ModePlain
	}
}
