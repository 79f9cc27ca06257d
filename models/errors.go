package models

import (
	"errors"
	"fmt"
)

// ErrDataFormat marks a dataset that is structurally unusable (for example a missing key column).
var ErrDataFormat = errors.New("data format error")

type DataFormatError struct {
	Dataset string
	Column  string
	Row     int
	Detail  string
}

func (e *DataFormatError) Error() string {
	msg := fmt.Sprintf("%s: dataset %q", ErrDataFormat, e.Dataset)
	if e.Column != "" {
		msg += fmt.Sprintf(" column %q", e.Column)
	}
	if e.Row > 0 {
		msg += fmt.Sprintf(" row %d", e.Row)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *DataFormatError) Is(target error) bool {
	return target == ErrDataFormat
}
