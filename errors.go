package captionforge

import (
	"errors"
	"fmt"
)

// Kind classifies a captioning failure.
type Kind int

const (
	_ Kind = iota
	KindInvalidRequest
	KindTemplateNotFound
	KindFontNotFound
	KindTemplateDecode
	KindFontDecode
	KindFormatMismatch
	KindLayout
	KindEncodeFailure
	KindTimeout
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindTemplateNotFound:
		return "TemplateNotFound"
	case KindFontNotFound:
		return "FontNotFound"
	case KindTemplateDecode:
		return "TemplateDecode"
	case KindFontDecode:
		return "FontDecode"
	case KindFormatMismatch:
		return "FormatMismatch"
	case KindLayout:
		return "Layout"
	case KindEncodeFailure:
		return "EncodeFailure"
	case KindTimeout:
		return "Timeout"
	case KindUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// Error is the engine's authoritative internal error model. The outer HTTP
// layer (out of scope here) maps Kind to a 4xx/5xx status.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("captionforge: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("captionforge: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, captionforge.NewError(captionforge.KindTimeout, "", nil)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an *Error of the given kind.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, defaulting to KindEncodeFailure — an internal, unclassified
// failure — otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindEncodeFailure
}
