package app

import (
	"net/url"
	"strings"
)

// normalizeDBURL appends disable_prepared_binary_result=yes when the toggle
// is set, leaving an explicit value in the URL alone.
func normalizeDBURL(raw string, disablePreparedBinaryResult bool) string {
	if !disablePreparedBinaryResult {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil || u == nil {
		return raw
	}

	params := u.Query()
	if params.Get("disable_prepared_binary_result") != "" {
		return raw
	}
	params.Set("disable_prepared_binary_result", "yes")
	u.RawQuery = params.Encode()
	return u.String()
}

// dbNameFromURL extracts the database name, for the db.name span attribute,
// from either a postgres:// URL or a key=value DSN.
func dbNameFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if name := dbNameFromConnURL(raw); name != "" {
		return name
	}
	return dbNameFromKeywordDSN(raw)
}

func dbNameFromConnURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u == nil || u.Scheme == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(u.Path, "/"))
}

func dbNameFromKeywordDSN(raw string) string {
	for _, token := range strings.Fields(raw) {
		if value, ok := strings.CutPrefix(token, "dbname="); ok {
			return strings.Trim(strings.TrimSpace(value), `"'`)
		}
	}
	return ""
}
