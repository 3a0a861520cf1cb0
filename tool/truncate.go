package tool

import "fmt"

// DefaultTruncateBytes is the output ceiling applied to every tool result.
const DefaultTruncateBytes = 1 << 20 // 1 MiB

// Truncate enforces the byte ceiling on raw tool output. When output fits,
// it is returned unchanged. Otherwise a prefix and suffix whose lengths sum
// to exactly the ceiling are kept, a marker noting the omitted byte count is
// inserted between them, and the omission is reported so callers can set the
// truncated flag.
func Truncate(output string, ceiling int) (string, bool, int) {
	if ceiling <= 0 || len(output) <= ceiling {
		return output, false, 0
	}

	omitted := len(output) - ceiling
	prefix := ceiling - ceiling/2
	suffix := ceiling - prefix

	marker := fmt.Sprintf("\n[... %d bytes omitted ...]\n", omitted)
	return output[:prefix] + marker + output[len(output)-suffix:], true, omitted
}

// timeoutMarker flags output cut off by the wall-clock deadline rather than
// the size ceiling.
func timeoutMarker(timeoutMs int) string {
	return fmt.Sprintf("\n[Command timed out after %dms. Output above is everything captured before the deadline.]", timeoutMs)
}
