package docgen

import (
	"regexp"
	"strings"
)

// BlockKind is the paragraph style a content line maps to.
type BlockKind int

const (
	BlockEmpty BlockKind = iota
	BlockHeading1
	BlockHeading2
	BlockBullet
	BlockParagraph
)

// Block is one paragraph of the generated document.
type Block struct {
	Kind BlockKind
	Text string
}

var bulletPrefix = regexp.MustCompile(`^[-*]\s+`)

// ParseBlocks maps each line of lightly formatted text to a block:
// "# " is a title, "## " a subtitle, "- " or "* " a bullet, blank lines stay
// as empty paragraphs and everything else is body text.
func ParseBlocks(content string) []Block {
	lines := strings.Split(content, "\n")
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		s := strings.TrimSpace(line)
		switch {
		case s == "":
			blocks = append(blocks, Block{Kind: BlockEmpty})
		case strings.HasPrefix(s, "## "):
			blocks = append(blocks, Block{Kind: BlockHeading2, Text: strings.TrimSpace(s[3:])})
		case strings.HasPrefix(s, "# "):
			blocks = append(blocks, Block{Kind: BlockHeading1, Text: strings.TrimSpace(s[2:])})
		case bulletPrefix.MatchString(s):
			blocks = append(blocks, Block{Kind: BlockBullet, Text: bulletPrefix.ReplaceAllString(s, "")})
		default:
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: s})
		}
	}
	return blocks
}
