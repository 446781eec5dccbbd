package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleInt allows JSON fields to be provided as number or numeric string
type FlexibleInt int

func (fi *FlexibleInt) UnmarshalJSON(data []byte) error {
	if fi == nil {
		return fmt.Errorf("FlexibleInt: nil receiver")
	}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(trimmed, &num); err == nil {
		n, err := strconv.Atoi(num.String())
		if err != nil {
			return fmt.Errorf("FlexibleInt: %s is not a whole number", num)
		}
		*fi = FlexibleInt(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			*fi = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("FlexibleInt: %q is not a whole number", s)
		}
		*fi = FlexibleInt(n)
		return nil
	}

	return fmt.Errorf("FlexibleInt: expected string or number, got %s", string(data))
}

func (fi FlexibleInt) Int() int {
	return int(fi)
}
