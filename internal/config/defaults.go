package config

import "golang.org/x/oauth2"

// Default endpoint and timing values. OAuth endpoints default to Google's
// v2 endpoints; the consent scopes themselves are fixed in the broker.
const (
	DefaultBaseURL        = "https://api.codetext.io"
	DefaultUserAgent      = "exportctl/0.1"
	DefaultConnectTimeout = "30s"

	DefaultAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	DefaultPreSubmitDelay = "1s"
	DefaultSubmitTimeout  = "30s"
	DefaultMaxAuthRetries = 3
)

// Defaults returns a Config populated with every default value. Loading
// merges the config file and environment on top of this.
func Defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			UserAgent:      DefaultUserAgent,
			ConnectTimeout: DefaultConnectTimeout,
		},
		OAuth: OAuthConfig{
			AuthURL:  DefaultAuthURL,
			TokenURL: DefaultTokenURL,
		},
		Export: ExportConfig{
			PreSubmitDelay: DefaultPreSubmitDelay,
			SubmitTimeout:  DefaultSubmitTimeout,
			MaxAuthRetries: DefaultMaxAuthRetries,
		},
		Logging: LoggingConfig{
			LogLevel: "info",
		},
	}
}

// Endpoint returns the oauth2 endpoint described by the OAuth section.
func (o OAuthConfig) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  o.AuthURL,
		TokenURL: o.TokenURL,
	}
}
