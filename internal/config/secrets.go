package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Database.DSN)
	redact(&out.Database.Password)
	redact(&out.Redis.Password)
	redact(&out.Realtime.ApiKey)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Watch.Listings != nil {
		out.Watch.Listings = make([]string, len(cfg.Watch.Listings))
		copy(out.Watch.Listings, cfg.Watch.Listings)
	}
	if cfg.Watch.Auctions != nil {
		out.Watch.Auctions = make([]string, len(cfg.Watch.Auctions))
		copy(out.Watch.Auctions, cfg.Watch.Auctions)
	}
	if cfg.Watch.SignalListings != nil {
		out.Watch.SignalListings = make([]string, len(cfg.Watch.SignalListings))
		copy(out.Watch.SignalListings, cfg.Watch.SignalListings)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
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
