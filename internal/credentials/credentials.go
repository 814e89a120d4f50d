// Package credentials loads the named API secrets the service talks to
// upstream with. Values come from the process environment, optionally
// seeded from a dotenv-style keys file.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Credentials struct {
	// Agent API
	AgentAPIKey string `envconfig:"NOMI_API_KEY"`
	WinstonID   string `envconfig:"WINSTON_ID"`
	GatesID     string `envconfig:"GATES_ID"`
	LexiaID     string `envconfig:"LEXIA_ID"`

	// Messaging relay
	RelayAccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
	RelayAuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
	RelayNumber     string `envconfig:"TWILIO_PHONE_NUMBER"`

	// Reserved for integrations that are not wired yet.
	GCPAPIKey          string `envconfig:"GCP_API_KEY"`
	Content360APIKey   string `envconfig:"CONTENT360_API_KEY"`
	SquarespaceAPIKey  string `envconfig:"SQUARESPACE_API_KEY"`
	DabblewriterAPIKey string `envconfig:"DABBLEWRITER_API_KEY"`
	DiscordAPIKey      string `envconfig:"DISCORD_API_KEY"`
	AnydeskAPIKey      string `envconfig:"ANYDESK_API_KEY"`
	ZapierAPIKey       string `envconfig:"ZAPIER_API_KEY"`
}

// Load reads keysFile into the environment (existing variables win) and then
// decodes the credentials. A missing keys file is not an error.
func Load(keysFile string) (Credentials, error) {
	if keysFile != "" {
		if err := godotenv.Load(keysFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Credentials{}, fmt.Errorf("load %s: %w", keysFile, err)
		}
	}

	var c Credentials
	if err := envconfig.Process("", &c); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return c, nil
}

// MissingAgent lists the agent credentials that are unset.
func (c Credentials) MissingAgent() []string {
	return missing(map[string]string{
		"NOMI_API_KEY": c.AgentAPIKey,
		"WINSTON_ID":   c.WinstonID,
		"GATES_ID":     c.GatesID,
		"LEXIA_ID":     c.LexiaID,
	}, "NOMI_API_KEY", "WINSTON_ID", "GATES_ID", "LEXIA_ID")
}

// MissingRelay lists the relay credentials that are unset.
func (c Credentials) MissingRelay() []string {
	return missing(map[string]string{
		"TWILIO_ACCOUNT_SID":  c.RelayAccountSID,
		"TWILIO_AUTH_TOKEN":   c.RelayAuthToken,
		"TWILIO_PHONE_NUMBER": c.RelayNumber,
	}, "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_PHONE_NUMBER")
}

func missing(values map[string]string, order ...string) []string {
	var out []string
	for _, name := range order {
		if strings.TrimSpace(values[name]) == "" {
			out = append(out, name)
		}
	}
	return out
}
