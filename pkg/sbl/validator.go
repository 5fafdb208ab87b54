// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl

import "fmt"

// AnomalyType represents different kinds of image problems
type AnomalyType int

const (
	AnomalyEmptyImage AnomalyType = iota
	AnomalyImageTooLarge
	AnomalyUnaligned
)

// ValidationError represents an image validation finding
type ValidationError struct {
	Type    AnomalyType
	Message string
	Fatal   bool
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateImage checks that image can be flashed with the 16-bit word
// addressing of the write command. Non-fatal findings are warnings.
func ValidateImage(image []byte) []ValidationError {
	errors := []ValidationError{}

	if len(image) == 0 {
		return []ValidationError{{
			Type:    AnomalyEmptyImage,
			Message: "firmware image is empty",
			Fatal:   true,
			Details: map[string]interface{}{"size": 0},
		}}
	}

	if len(image) > MaxImageSize {
		errors = append(errors, ValidationError{
			Type:    AnomalyImageTooLarge,
			Message: fmt.Sprintf("firmware image is %d bytes (max %d)", len(image), MaxImageSize),
			Fatal:   true,
			Details: map[string]interface{}{"size": len(image), "max": MaxImageSize},
		})
	}

	if len(image)%WordSize != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnaligned,
			Message: fmt.Sprintf("firmware image size %d is not a multiple of %d, last block will be zero padded", len(image), WordSize),
			Details: map[string]interface{}{"size": len(image), "padding": BlockCount(len(image))*BlockSize - len(image)},
		})
	}

	return errors
}

// HasFatal reports whether any finding prevents flashing
func HasFatal(errors []ValidationError) bool {
	for _, e := range errors {
		if e.Fatal {
			return true
		}
	}
	return false
}
