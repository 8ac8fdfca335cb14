// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fencedBlockRE matches the innermost ```json ... ``` or ``` ... ``` span.
var fencedBlockRE = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?\\s*```")

// ExtractJSON parses text into a JSON object using a four-step fallback:
// direct unmarshal, then the innermost fenced code block, then the
// substring from the first '{' to the last '}', then failure. Direct
// parse always wins over the regex paths when text is already valid JSON.
func ExtractJSON(text string) (map[string]any, error) {
	if obj, ok := tryUnmarshal(text); ok {
		return obj, nil
	}

	if m := fencedBlockRE.FindStringSubmatch(text); m != nil {
		if obj, ok := tryUnmarshal(m[1]); ok {
			return obj, nil
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if obj, ok := tryUnmarshal(text[start : end+1]); ok {
			return obj, nil
		}
	}

	return nil, ResponseError("could not extract JSON object from model response", text)
}

func tryUnmarshal(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil, false
	}
	return obj, true
}
