package access

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeChannelID maps a configured channel identifier to the numeric id
// the Bot API expects. Broadcast channels are addressed as -100<id>; config
// files and gateway dashboards often carry the bare positive id, so the
// prefix transform happens here, once, instead of at every call site.
//
// Accepted forms: "-1001234567890" (already normalized), "1234567890"
// (bare id, gets the -100 prefix), "-1234567890" (legacy group id, kept).
// "@username" forms are not numeric and must be resolved by the caller
// before reaching this function.
func NormalizeChannelID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("access: empty channel id")
	}
	if strings.HasPrefix(s, "@") {
		return 0, fmt.Errorf("access: channel id %q must be resolved to a numeric id first", raw)
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("access: invalid channel id %q: %w", raw, err)
	}
	if id > 0 {
		normalized, err := strconv.ParseInt("-100"+s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("access: channel id %q overflows after prefixing: %w", raw, err)
		}
		return normalized, nil
	}
	return id, nil
}
