// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package utils

import "unicode/utf8"

// TruncateUTF8Safe truncates a message, respecting UTF8, so that its encoding
// occupies at most `byteLimit` bytes. If a codepoint straddles the limit, the
// whole codepoint is dropped rather than emitting invalid UTF8.
func TruncateUTF8Safe(message string, byteLimit int) (result string) {
	if len(message) <= byteLimit {
		return message
	}
	message = message[:byteLimit]
	for i := 0; i < (utf8.UTFMax - 1); i++ {
		r, n := utf8.DecodeLastRuneInString(message)
		if r == utf8.RuneError && n <= 1 {
			message = message[:len(message)-1]
		} else {
			break
		}
	}
	return message
}
