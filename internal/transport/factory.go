package transport

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jlindermeir/ami0/internal/config"
)

// NewClient is a factory that creates the transport Client selected by
// configuration.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: %q. Supported: [%s]",
			cfg.Provider, config.ProviderGemini)
	}
}
