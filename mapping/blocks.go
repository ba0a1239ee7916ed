package mapping

import (
	"strings"
)

// ParagraphSeparator separates blocks in the plain text rendering.
const ParagraphSeparator = "\n\n"

// block kinds whose rich text is rendered; everything else is dropped
var textBlockKinds = map[string]struct{}{
	"paragraph":          {},
	"heading_1":          {},
	"heading_2":          {},
	"heading_3":          {},
	"bulleted_list_item": {},
	"numbered_list_item": {},
}

// BlocksToText renders Notion blocks as plain text, one line per text block,
// lines separated by a blank line.
func BlocksToText(blocks []any) string {
	lines := make([]string, 0, len(blocks))
	for _, raw := range blocks {
		if line, ok := blockText(Of(raw)); ok {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, ParagraphSeparator)
}

func blockText(block Value) (string, bool) {
	kind, ok := block.Get("type").AsString()
	if !ok {
		return "", false
	}
	if _, ok := textBlockKinds[kind]; !ok {
		return "", false
	}
	runs, ok := block.Path(kind, "rich_text").AsArray()
	if !ok {
		return "", false
	}
	var sb strings.Builder
	for _, run := range runs {
		if text, ok := runText(run); ok {
			sb.WriteString(text)
		}
	}
	return sb.String(), true
}

// runText prefers the computed plain_text and falls back to text.content,
// which is all a freshly built run carries.
func runText(run Value) (string, bool) {
	if s, ok := run.Get("plain_text").AsString(); ok {
		return s, true
	}
	return run.Path("text", "content").AsString()
}

// TextToBlocks builds one paragraph block per blank-line separated segment.
// Segments are kept verbatim, empty ones included.
func TextToBlocks(text string) []any {
	segments := strings.Split(text, ParagraphSeparator)
	blocks := make([]any, 0, len(segments))
	for _, segment := range segments {
		blocks = append(blocks, ParagraphBlock(segment))
	}
	return blocks
}

// ParagraphBlock returns a paragraph block carrying a single text run.
func ParagraphBlock(content string) map[string]any {
	return map[string]any{
		"object": "block",
		"type":   "paragraph",
		"paragraph": map[string]any{
			"rich_text": []any{
				map[string]any{
					"type": "text",
					"text": map[string]any{
						"content": content,
					},
				},
			},
		},
	}
}
