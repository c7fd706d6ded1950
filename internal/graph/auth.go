package graph

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	authorityURL = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	// Scope requests every application permission granted to the app registration.
	Scope = "https://graph.microsoft.com/.default"
)

// TokenProvider returns a bearer token. It is called before every request.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken always returns the same token.
func StaticToken(token string) TokenProvider {
	return TokenFunc(func(context.Context) (string, error) { return token, nil })
}

// ClientCredentials acquires app-only tokens from Microsoft Entra ID. Tokens
// are reused until shortly before they expire.
type ClientCredentials struct {
	source oauth2.TokenSource
}

// NewClientCredentials returns a provider for the given tenant and app registration.
func NewClientCredentials(tenantID, clientID, clientSecret string) (*ClientCredentials, error) {
	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("tenant id, client id and client secret must all be set")
	}
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf(authorityURL, tenantID),
		Scopes:       []string{Scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return &ClientCredentials{source: cfg.TokenSource(context.Background())}, nil
}

func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := c.source.Token()
	if err != nil {
		return "", fmt.Errorf("client credentials token request failed: %w", err)
	}
	return tok.AccessToken, nil
}
