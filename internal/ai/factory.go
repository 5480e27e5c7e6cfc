package ai

import (
	"fmt"

	"github.com/kiranshivaraju/medinventory/internal/ai/anthropic"
	"github.com/kiranshivaraju/medinventory/internal/ai/ollama"
	"github.com/kiranshivaraju/medinventory/internal/ai/openai"
	"github.com/kiranshivaraju/medinventory/internal/ai/vllm"
	"github.com/kiranshivaraju/medinventory/internal/config"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// NewProvider constructs the completion provider named by cfg.Provider.
// Called once at startup.
func NewProvider(cfg config.AIConfig) (models.CompletionProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama, cfg.RequestTimeout), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM, cfg.RequestTimeout), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.RequestTimeout), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, cfg.RequestTimeout), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai, anthropic", cfg.Provider)
	}
}
