package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorInvalidTransition is returned when a report is already resolved or dismissed.
var ErrorInvalidTransition = errors.New("report is closed; status can no longer change")

var (
	ErrorUnknownField      = errors.New("unknown ledger field")
	ErrorInvalidFieldValue = errors.New("invalid value for ledger field")
)
