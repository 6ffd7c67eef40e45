package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// decodeFeed unmarshals an upstream payload. Fields whose JSON type does not
// match the model are left unset; partial reports whether that happened.
// Any other error means nothing usable was decoded.
func decodeFeed(data []byte, v any) (partial bool, err error) {
	err = json.Unmarshal(data, v)
	if err == nil {
		return false, nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return true, nil
	}
	return false, err
}

// FlexString accepts a JSON string or number. Anything else decodes to "".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*f = FlexString(strings.TrimSpace(s))
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*f = FlexString(data)
	}
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// maxSeconds is the longest duration time.Duration can hold, in seconds.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// Seconds is a duration sent either as a number of seconds or as a clock
// string such as "1:02:03" or "4:05".
type Seconds struct {
	Value time.Duration
	Valid bool
}

func (s *Seconds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		if d, ok := parseClockDuration(raw); ok {
			*s = Seconds{Value: d, Valid: true}
		}
		return nil
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || f < 0 || f >= float64(maxSeconds) {
		return nil
	}
	*s = Seconds{Value: time.Duration(f * float64(time.Second)), Valid: true}
	return nil
}

func parseClockDuration(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, false
	}

	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || n < 0 || n > maxSeconds || total > (maxSeconds-n)/60 {
			return 0, false
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, true
}
