package acquisition

import "fmt"

// buildRangeHeader constructs an HTTP Range header requesting bytes from
// resumeFrom to the end of the resource.
func buildRangeHeader(resumeFrom int64) string {
	if resumeFrom < 0 {
		resumeFrom = 0
	}
	return fmt.Sprintf("bytes=%d-", resumeFrom)
}

// parseContentRange parses a "bytes start-end/total" Content-Range header,
// returning total == -1 when the server reports "*" (unknown size).
func parseContentRange(header string) (start, end, total int64, err error) {
	if header == "" {
		return 0, 0, 0, fmt.Errorf("empty Content-Range header")
	}
	var totalStr string
	n, scanErr := fmt.Sscanf(header, "bytes %d-%d/%s", &start, &end, &totalStr)
	if scanErr != nil || n < 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %q", header)
	}
	if totalStr == "*" {
		return start, end, -1, nil
	}
	if _, err := fmt.Sscanf(totalStr, "%d", &total); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid total in Content-Range: %q", totalStr)
	}
	return start, end, total, nil
}
