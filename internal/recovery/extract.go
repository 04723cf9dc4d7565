package recovery

import "sort"

// balancedObjects returns every balanced {...} span in text, longest
// first. The scan is string-aware so braces inside JSON strings do not
// end a span. Go's regexp engine cannot express the nested pattern the
// extraction needs, hence the hand scanner.
func balancedObjects(text string) []string {
	var spans []string
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		if end, ok := scanBalanced(text, start); ok {
			spans = append(spans, text[start:end+1])
		}
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return len(spans[i]) > len(spans[j])
	})
	return spans
}

// scanBalanced scans forward from the '{' at start and returns the index
// of its matching '}'.
func scanBalanced(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
