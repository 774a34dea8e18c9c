package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"roadquest/pkg/config"
	apperrors "roadquest/pkg/errors"
)

// ExtractLimitOffset reads ?limit and ?offset, clamping them to the configured bounds.
func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// DecodeJSON decodes the request body into v. Oversized bodies map to 413 and
// anything else unreadable to 400.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.TooLarge(maxErr.Limit)
		}
		return apperrors.InvalidInput("Invalid request body")
	}
	return nil
}

const DateLayout = "2006-01-02"

// ParseTimestamp accepts RFC3339 timestamps and plain dates (midnight UTC).
func ParseTimestamp(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("Invalid %s format, expected RFC3339 or YYYY-MM-DD", field))
}

// ParseOptionalTimestamp is ParseTimestamp for query parameters that may be absent.
func ParseOptionalTimestamp(field, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
