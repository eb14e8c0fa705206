package consensus

import "strconv"

// parseUnixSeconds parses a block's decimal-string time field into an
// int64 count of seconds since epoch.
func parseUnixSeconds(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
