package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	youtubeapi "google.golang.org/api/youtube/v3"
)

// oauthConfig loads the installed-app OAuth client from the secrets file.
func oauthConfig(clientSecretsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(clientSecretsPath)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, youtubeapi.YoutubeUploadScope, youtubeapi.YoutubeReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	return cfg, nil
}

// tokenPath returns the token file for a channel. Channel names are file
// system safe by construction (validated at channel creation).
func tokenPath(tokenDir, channelName string) string {
	return filepath.Join(tokenDir, strings.ToLower(channelName)+".json")
}

func loadToken(tokenDir, channelName string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenPath(tokenDir, channelName))
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if token.RefreshToken == "" && !token.Valid() {
		return nil, fmt.Errorf("token for %s expired with no refresh token", channelName)
	}
	return &token, nil
}

// SaveToken persists a freshly minted token for a channel.
func SaveToken(tokenDir, channelName string, token *oauth2.Token) error {
	if err := os.MkdirAll(tokenDir, 0o755); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	path := tokenPath(tokenDir, channelName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// AuthURL returns the consent URL an operator visits to authorize a channel.
func AuthURL(clientSecretsPath string) (string, error) {
	cfg, err := oauthConfig(clientSecretsPath)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline), nil
}

// ExchangeCode trades an authorization code for a token and stores it.
func ExchangeCode(ctx context.Context, clientSecretsPath, tokenDir, channelName, code string) error {
	cfg, err := oauthConfig(clientSecretsPath)
	if err != nil {
		return err
	}
	token, err := cfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return SaveToken(tokenDir, channelName, token)
}
