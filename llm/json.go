package llm

import "strings"

// CleanJSONResponse strips markdown code fences and surrounding prose from a
// model reply, returning the outermost {...} span when one exists.
func CleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "{") && strings.HasSuffix(response, "}") {
		return response
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end > start {
		return response[start : end+1]
	}
	return response
}
