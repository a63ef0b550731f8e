package llm

import "strings"

// ExtractJSON pulls the JSON document out of a completion. Models routinely
// wrap their answer in markdown fences or pad it with prose; the parseable
// payload is everything between the first '{' and the last '}'.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end < start {
		return content
	}

	return content[start : end+1]
}
