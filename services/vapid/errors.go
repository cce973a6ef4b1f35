package vapid

import "fmt"

// KeyImportError is returned when VAPID key material is malformed.
// It is fatal: no push can be signed without a valid key.
type KeyImportError struct {
	Reason string
	Length int
	Err    error
}

func (e *KeyImportError) Error() string {
	msg := "vapid: key import failed: " + e.Reason
	if e.Length > 0 {
		msg = fmt.Sprintf("%s (got %d bytes)", msg, e.Length)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *KeyImportError) Unwrap() error { return e.Err }

// SignatureFormatError is returned when an ECDSA signature is neither raw r||s
// nor a well formed DER SEQUENCE of two INTEGERs.
type SignatureFormatError struct {
	Reason string
	Length int
}

func (e *SignatureFormatError) Error() string {
	return fmt.Sprintf("vapid: malformed signature (%d bytes): %s", e.Length, e.Reason)
}
