package config

import (
	"fmt"
	"os"
)

// HasOpenAIKey reports whether the OPENAI_API_KEY environment variable
// is set. The key itself is consumed by the Genkit OpenAI plugin; this
// check feeds the "valid" field of GET /api/config so the frontend can
// render a setup hint instead of failing requests.
func HasOpenAIKey() bool {
	return os.Getenv("OPENAI_API_KEY") != ""
}

// Validate checks the configuration for correctness. Credential
// presence is validated here because serving turns without them can
// only fail; the config endpoint uses HasOpenAIKey separately.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if !HasOpenAIKey() {
		return ErrMissingOpenAIKey
	}
	if c.Search.APIKey == "" {
		return ErrMissingTavilyKey
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %.2f (must be between 0 and 2)", ErrInvalidTemperature, c.Temperature)
	}
	if c.RetrievalK < 1 || c.RetrievalK > 50 {
		return fmt.Errorf("%w: %d (must be between 1 and 50)", ErrInvalidRetrievalK, c.RetrievalK)
	}
	if c.MaxToolRounds < 1 || c.MaxToolRounds > 20 {
		return fmt.Errorf("%w: %d (must be between 1 and 20)", ErrInvalidMaxToolRounds, c.MaxToolRounds)
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 20 {
		return fmt.Errorf("%w: %d (must be between 1 and 20)", ErrInvalidSearchMaxResults, c.Search.MaxResults)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.ListenAddr == "" {
		return ErrInvalidListenAddr
	}

	return nil
}
