package auth

import "regexp"

// MinPasswordLength is the system-wide minimum password length. Not
// user-configurable at this layer.
const MinPasswordLength = 8

// Field names, in declaration order. The order drives FirstErrorField and
// therefore focus management; it is a tested property.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldTOTPCode = "totp_code"
)

var fieldOrder = []string{FieldEmail, FieldPassword, FieldTOTPCode}

var (
	// emailPattern is the RFC-lite email shape: something@something.tld
	// with no whitespace or extra @.
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// totpPattern requires exactly six digits.
	totpPattern = regexp.MustCompile(`^[0-9]{6}$`)
)

// FormValidation is the result of a whole-form validation pass. Errors is
// recomputed wholesale every pass — never merged incrementally — so stale
// field errors cannot leak across passes.
type FormValidation struct {
	IsValid bool              `json:"is_valid"`
	Errors  map[string]string `json:"errors"`

	// FirstErrorField is the first field in declaration order carrying an
	// error; empty when the form is valid.
	FirstErrorField string `json:"first_error_field,omitempty"`
}

// ValidateField runs the field's rule chain top-to-bottom and returns the
// first failing rule's message, or "" when the value is valid.
//
// The TOTP field is only required while a second-factor challenge is
// pending; requireTwoFactor communicates that sub-mode.
func ValidateField(field, value string, requireTwoFactor bool) string {
	switch field {
	case FieldEmail:
		if value == "" {
			return "Email is required"
		}
		if !emailPattern.MatchString(value) {
			return "Enter a valid email address"
		}
	case FieldPassword:
		if value == "" {
			return "Password is required"
		}
		if len(value) < MinPasswordLength {
			return "Password must be at least 8 characters"
		}
	case FieldTOTPCode:
		if !requireTwoFactor && value == "" {
			return ""
		}
		if !totpPattern.MatchString(value) {
			return "Enter the 6-digit code from your authenticator"
		}
	}
	return ""
}

// ValidateForm validates a full credential set. This is the authoritative
// pre-submit check: submission must be refused client-side when IsValid is
// false, with no network call made.
func ValidateForm(creds LoginCredentials, requireTwoFactor bool) FormValidation {
	values := map[string]string{
		FieldEmail:    creds.Email,
		FieldPassword: creds.Password,
		FieldTOTPCode: creds.TOTPCode,
	}

	result := FormValidation{
		IsValid: true,
		Errors:  make(map[string]string),
	}

	for _, field := range fieldOrder {
		msg := ValidateField(field, values[field], requireTwoFactor)
		if msg == "" {
			continue
		}
		result.Errors[field] = msg
		if result.FirstErrorField == "" {
			result.FirstErrorField = field
		}
		result.IsValid = false
	}

	return result
}
