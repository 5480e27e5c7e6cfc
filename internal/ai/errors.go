package ai

import (
	"errors"

	"github.com/kiranshivaraju/medinventory/internal/ai/aierr"
)

var (
	ErrProviderUnavailable = aierr.ErrProviderUnavailable
	ErrInferenceTimeout    = aierr.ErrInferenceTimeout
	ErrInvalidResponse     = aierr.ErrInvalidResponse
	ErrUnrecognizedLabel   = errors.New("ai response names no allowed label")
)
