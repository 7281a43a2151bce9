package service

import "errors"

var (
	ErrInvalidData           = errors.New("invalid data")
	ErrInvalidImage          = errors.New("invalid image")
	ErrInvalidType           = errors.New("invalid measure type")
	ErrDoubleReport          = errors.New("monthly reading already recorded")
	ErrMeasureNotFound       = errors.New("measurement not found")
	ErrMeasuresNotFound      = errors.New("no measurements found")
	ErrConfirmationDuplicate = errors.New("measurement already confirmed")
	ErrExtractionFailed      = errors.New("value extraction failed")
)
