package domain

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a user-facing validation failure.
type ErrorCode string

// Validation error codes surfaced to callers.
const (
	CodeNoFarmLine                        ErrorCode = "NoFarmLine"
	CodeNoSpecieProduct                   ErrorCode = "NoSpecieProduct"
	CodeMissingProductionLocation         ErrorCode = "MissingProductionLocation"
	CodeMissingSupplierLocation           ErrorCode = "MissingSupplierLocation"
	CodeIncompatibleAnimalAndEventType    ErrorCode = "IncompatibleAnimalAndEventType"
	CodeInvalidAnimalDestination          ErrorCode = "InvalidAnimalDestination"
	CodeAnimalNotInLocation               ErrorCode = "AnimalNotInLocation"
	CodeGroupNotInLocation                ErrorCode = "GroupNotInLocation"
	CodeNotEnoughFeedLot                  ErrorCode = "NotEnoughFeedLot"
	CodeNotEnoughFeedProduct              ErrorCode = "NotEnoughFeedProduct"
	CodeEventWithoutDeadNorLive           ErrorCode = "EventWithoutDeadNorLive"
	CodeNotFarrowingGroup                 ErrorCode = "NotFarrowingGroup"
	CodeIncorrectWeaningQuantity          ErrorCode = "IncorrectWeaningQuantity"
	CodeInvalidTransformation             ErrorCode = "InvalidTransformation"
	CodeAlreadyExistValidatedRemovalEvent ErrorCode = "AlreadyExistValidatedRemovalEvent"
	CodeDoseNotInFarm                     ErrorCode = "DoseNotInFarm"
	CodeQualityTestNotSucceeded           ErrorCode = "QualityTestNotSucceeded"
	CodeNoDosesOnValidate                 ErrorCode = "NoDosesOnValidate"
	CodeMoreSemenInDosesThanProduced      ErrorCode = "MoreSemenInDosesThanProduced"
	CodeDoseAlreadyDefined                ErrorCode = "DoseAlreadyDefined"
	CodeInvalidInventoryQuantity          ErrorCode = "InvalidInventoryQuantity"
	CodeMissingPreviousInventory          ErrorCode = "MissingPreviousInventory"
	CodeExistsLaterRealInventories        ErrorCode = "ExistsLaterRealInventories"
	CodeTimestampInFuture                 ErrorCode = "TimestampInFuture"
	CodeEventNotCancellable               ErrorCode = "EventNotCancellable"
	CodeInvalidEventState                 ErrorCode = "InvalidEventState"
	CodeIncompatibleCycleState            ErrorCode = "IncompatibleCycleState"
	CodeInvalidQuantity                   ErrorCode = "InvalidQuantity"
	CodeInvalidConfiguration              ErrorCode = "InvalidConfiguration"
	CodeIncompatibleEventOrder            ErrorCode = "IncompatibleEventOrder"
	CodeInvalidReclassificationProduct    ErrorCode = "InvalidReclassificationProduct"
	CodeUnitConversion                    ErrorCode = "UnitConversion"
	CodeInvalidDateRange                  ErrorCode = "InvalidDateRange"
	CodeNotFound                          ErrorCode = "NotFound"
)

// Error is a typed validation failure. Two errors match under errors.Is when
// their codes are equal, so callers can compare against a bare Error{Code: c}.
type Error struct {
	Code    ErrorCode
	Message string
}

// Errorf builds an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors sharing the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Code extracts the ErrorCode wrapped in err, or "" when none is present.
func Code(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether err carries code.
func HasCode(err error, code ErrorCode) bool {
	return Code(err) == code
}
