package analysis

import (
	"regexp"
	"strings"
)

// CodeBlock is a fenced or inline code span detected in message content.
type CodeBlock struct {
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	IsInline bool   `json:"is_inline"`
}

// LineCount returns the number of lines in the block.
func (cb CodeBlock) LineCount() int {
	return strings.Count(cb.Content, "\n") + 1
}

var (
	fencedBlockPattern = regexp.MustCompile("(?s)```([\\w]*)\\n(.*?)\\n```")
	inlineCodePattern  = regexp.MustCompile("`([^`\n]+)`")
)

// CodeBlockDetector finds Markdown code blocks. Fenced blocks shorter than
// the configured minimum line count are dropped; blocks longer than the
// maximum are truncated with an explicit marker.
type CodeBlockDetector struct {
	config Config
}

func NewCodeBlockDetector(config Config) *CodeBlockDetector {
	return &CodeBlockDetector{config: config}
}

// Detect returns all code blocks in the text, fenced blocks first.
func (d *CodeBlockDetector) Detect(text string) []CodeBlock {
	if !d.config.CodeDetectionEnabled {
		return nil
	}

	blocks := d.detectFenced(text)
	if d.config.PreserveInlineCode {
		blocks = append(blocks, d.detectInline(text)...)
	}
	return blocks
}

func (d *CodeBlockDetector) detectFenced(text string) []CodeBlock {
	var blocks []CodeBlock

	for _, idx := range fencedBlockPattern.FindAllStringSubmatchIndex(text, -1) {
		language := text[idx[2]:idx[3]]
		content := text[idx[4]:idx[5]]

		lines := strings.Split(content, "\n")
		if len(lines) < d.config.CodeMinLines {
			continue
		}
		if len(lines) > d.config.CodeMaxLines {
			content = strings.Join(lines[:d.config.CodeMaxLines], "\n") + "\n... [TRUNCATED]"
		}

		blocks = append(blocks, CodeBlock{
			Content:  content,
			Language: language,
			Start:    idx[0],
			End:      idx[1],
			IsInline: false,
		})
	}

	return blocks
}

func (d *CodeBlockDetector) detectInline(text string) []CodeBlock {
	var blocks []CodeBlock

	for _, idx := range inlineCodePattern.FindAllStringSubmatchIndex(text, -1) {
		blocks = append(blocks, CodeBlock{
			Content:  text[idx[2]:idx[3]],
			Start:    idx[0],
			End:      idx[1],
			IsInline: true,
		})
	}

	return blocks
}
