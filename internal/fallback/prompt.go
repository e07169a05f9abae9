package fallback

import (
	"strings"

	"ledgerq/internal/core"
)

const preamble = `You help someone understand their personal spending.
Answer using only the figures below. Do not list individual expenses, do not show calculations, and do not use tables, code or markdown.
Reply in two or three plain sentences.
`

const retryHint = "\nYour previous reply was not plain prose. Write ordinary sentences only.\n"

// BuildPrompt renders the prompt for req: the summary, the category table
// and the question.
func BuildPrompt(req Request, table *core.CategoryTable) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\nLedger summary:\n")
	b.WriteString(req.Summary.Render())
	if table != nil {
		b.WriteString("\nCategories and the words that map to them:\n")
		b.WriteString(table.Describe())
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(req.Text)
	b.WriteString("\n")
	return b.String()
}
