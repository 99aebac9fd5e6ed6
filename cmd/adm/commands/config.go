package commands

import (
	"fmt"
	"strings"

	"sportstrivia/internal/config"
	contextutils "sportstrivia/internal/utils"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "***"

// ConfigCommands returns the configuration commands
func ConfigCommands(env *Env) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after file loading, environment overrides and defaults,
as YAML. Secrets are masked.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(redactConfig(env.Config))
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to encode config: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
			return err
		},
	})

	return configCmd
}

// redactConfig returns a copy of cfg with credentials masked
func redactConfig(cfg *config.Config) *config.Config {
	c := *cfg
	c.Database.URL = contextutils.MaskDatabaseURL(c.Database.URL)
	if c.Redis.Password != "" {
		c.Redis.Password = redacted
	}
	if c.Generation.APIKey != "" {
		c.Generation.APIKey = redacted
	}
	c.Providers = make([]config.ProviderConfig, len(cfg.Providers))
	for i, p := range cfg.Providers {
		if p.APIKey != "" {
			p.APIKey = redacted
		}
		c.Providers[i] = p
	}
	c.OpenTelemetry.Headers = redactHeaders(cfg.OpenTelemetry.Headers)
	return &c
}

func redactHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if strings.Contains(strings.ToLower(k), "auth") || strings.Contains(strings.ToLower(k), "key") {
			v = redacted
		}
		out[k] = v
	}
	return out
}
