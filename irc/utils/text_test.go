// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package utils

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateUTF8Safe(t *testing.T) {
	if result := TruncateUTF8Safe("fourteen bytes", 20); result != "fourteen bytes" {
		t.Errorf("short strings should be returned unchanged, got [%s]", result)
	}
	if result := TruncateUTF8Safe("fourteen bytes", 10); result != "fourteen b" {
		t.Errorf("expected [fourteen b], got [%s]", result)
	}

	// U+2603 SNOWMAN is 3 bytes in UTF8; no truncation boundary that
	// splits one may produce invalid UTF8
	snowmen := strings.Repeat("☃", 10)
	for limit := 0; limit <= len(snowmen); limit++ {
		result := TruncateUTF8Safe(snowmen, limit)
		if len(result) > limit {
			t.Errorf("limit %d: result is %d bytes", limit, len(result))
		}
		if !utf8.ValidString(result) {
			t.Errorf("limit %d: truncation produced invalid UTF8", limit)
		}
		if len(result) < limit-(utf8.UTFMax-1) {
			t.Errorf("limit %d: truncated more than one codepoint (%d bytes)", limit, len(result))
		}
	}
}
