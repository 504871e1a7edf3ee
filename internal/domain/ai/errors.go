package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyResponse is returned when the model answered without any text.
var ErrEmptyResponse = errors.New("ai returned no text")

// ErrMalformedDescription is returned when the model text is not the expected JSON object.
var ErrMalformedDescription = errors.New("ai returned a malformed description")

// ErrNoImage is returned when a generation response carries no image payload.
var ErrNoImage = errors.New("ai returned no image data")

// ErrInvalidDimensions rejects generation requests without a positive width and height.
var ErrInvalidDimensions = errors.New("image dimensions must be positive")
