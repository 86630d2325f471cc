package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"classbook"
)

// EnvCredentials reads the account credentials from environment variables
// at the moment they are needed, so they are never held anywhere else.
type EnvCredentials struct {
	UsernameVar string
	PasswordVar string
}

// CredentialSource builds the env reader for the configured variable names.
func (c *Config) CredentialSource() classbook.CredentialSource {
	return EnvCredentials{
		UsernameVar: c.Credentials.UsernameEnv,
		PasswordVar: c.Credentials.PasswordEnv,
	}
}

// Credentials resolves both variables, rejecting empty or unset values
// before any browser work starts.
func (e EnvCredentials) Credentials(context.Context) (classbook.Credentials, error) {
	username, err := requireEnv(e.UsernameVar)
	if err != nil {
		return classbook.Credentials{}, err
	}
	password, err := requireEnv(e.PasswordVar)
	if err != nil {
		return classbook.Credentials{}, err
	}
	return classbook.Credentials{Username: username, Password: password}, nil
}

func requireEnv(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("credential environment variable name is empty")
	}
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required environment variable: %s", name)
	}
	return value, nil
}
