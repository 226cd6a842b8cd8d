package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	redact(&out.SentiChain.APIKey)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	redact(&out.Server.APIKey)

	// Copy maps and slices so mutations to the redacted copy do not affect
	// the original.
	if cfg.Networks != nil {
		out.Networks = make(map[string]NetworkConfig, len(cfg.Networks))
		for k, v := range cfg.Networks {
			out.Networks[k] = v
		}
	}
	if cfg.Agents.Allocation != nil {
		out.Agents.Allocation = make(map[string]float64, len(cfg.Agents.Allocation))
		for k, v := range cfg.Agents.Allocation {
			out.Agents.Allocation[k] = v
		}
	}
	if cfg.Agents.Enabled != nil {
		out.Agents.Enabled = append([]string(nil), cfg.Agents.Enabled...)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
