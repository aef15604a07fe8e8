package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// params are the flat string inputs of a GET query or a JSON object body.
type params map[string]string

func readParams(r *http.Request) (params, error) {
	p := params{}
	if r.Method == http.MethodGet || r.Method == http.MethodDelete {
		for k, v := range r.URL.Query() {
			if len(v) > 0 {
				p[k] = strings.TrimSpace(v[0])
			}
		}
		return p, nil
	}

	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid json body")
	}
	for k, v := range body {
		switch val := v.(type) {
		case string:
			p[k] = strings.TrimSpace(val)
		case json.Number:
			p[k] = val.String()
		case bool:
			p[k] = strconv.FormatBool(val)
		}
	}
	return p, nil
}

// positiveInt returns fallback for a blank value and an error for anything
// that is not a positive whole number.
func positiveInt(raw, name string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

// optionalMinutes parses a duration in minutes. Zero counts as supplied;
// blank is reported as absent and negatives or fractions are rejected.
func optionalMinutes(raw, name string) (int, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, true, nil
}

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = looseString(n.String())
	return nil
}

// eventTime accepts "2025-10-07T09:00:00Z" or {"dateTime": "...", "timeZone": "..."}.
type eventTime struct {
	DateTime string
	TimeZone string
}

func (t *eventTime) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		t.DateTime = strings.TrimSpace(str)
		return nil
	}
	var obj struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("expected timestamp or {dateTime}, got %s", b)
	}
	t.DateTime, t.TimeZone = strings.TrimSpace(obj.DateTime), strings.TrimSpace(obj.TimeZone)
	return nil
}
