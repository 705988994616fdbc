package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Server
	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Lifecycle
	out.Lifecycle = cfg.Lifecycle
	redact(&out.Lifecycle.AccessKey)
	redact(&out.Lifecycle.SecretKey)

	// Cosigner
	out.Cosigner = cfg.Cosigner
	redact(&out.Cosigner.PrivateKey)
	redact(&out.Cosigner.KeyPassword)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Admission.ElevatedAddrs != nil {
		out.Admission.ElevatedAddrs = make([]string, len(cfg.Admission.ElevatedAddrs))
		copy(out.Admission.ElevatedAddrs, cfg.Admission.ElevatedAddrs)
	}

	// Copy maps so mutations to the redacted copy do not affect the original.
	if cfg.Chains != nil {
		out.Chains = make(map[string]ChainConfig, len(cfg.Chains))
		for k, v := range cfg.Chains {
			out.Chains[k] = v
		}
	}
	if cfg.Lifecycle.StateMachineARNs != nil {
		out.Lifecycle.StateMachineARNs = make(map[string]string, len(cfg.Lifecycle.StateMachineARNs))
		for k, v := range cfg.Lifecycle.StateMachineARNs {
			out.Lifecycle.StateMachineARNs[k] = v
		}
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
