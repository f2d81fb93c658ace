package jira

// FirstTextFromADF extracts the first paragraph's first text run from an
// Atlassian Document Format value (issue descriptions, worklog comments).
// Anything richer than that single run is dropped; absent or unexpected
// structures yield "". Lossy on purpose: reporting only needs a plain
// one-line summary of the rich text.
func FirstTextFromADF(v any) string {
    doc, ok := v.(map[string]any)
    if !ok { return "" }
    content, ok := doc["content"].([]any)
    if !ok || len(content) == 0 { return "" }
    para, ok := content[0].(map[string]any)
    if !ok { return "" }
    inner, ok := para["content"].([]any)
    if !ok || len(inner) == 0 { return "" }
    run, ok := inner[0].(map[string]any)
    if !ok { return "" }
    text, _ := run["text"].(string)
    return text
}
