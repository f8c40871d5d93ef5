package vault

import (
	"errors"
	"fmt"

	"github.com/hashicorp/vault/api"
)

// SecretManager resolves credentials kept out of site configuration
// and environment variables: database connection strings and the
// external solver's bearer token.
type SecretManager struct {
	client *api.Client
}

func NewSecretManager(address, token string) (*SecretManager, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}

	client.SetToken(token)

	return &SecretManager{client: client}, nil
}

func (sm *SecretManager) GetDatabaseCredentials() (string, error) {
	return sm.readString("secret/data/database", "connection_string")
}

// GetSolverCredentials implements solver.CredentialSource, resolving
// the bearer token the external optimization endpoint expects.
func (sm *SecretManager) GetSolverCredentials() (string, error) {
	return sm.readString("secret/data/solver", "token")
}

func (sm *SecretManager) readString(path, field string) (string, error) {
	secret, err := sm.client.Logical().Read(path)
	if err != nil {
		return "", err
	}
	if secret == nil {
		return "", fmt.Errorf("no secret found at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", errors.New("malformed secret data at " + path)
	}

	value, ok := data[field].(string)
	if !ok {
		return "", fmt.Errorf("field %q absent at %s", field, path)
	}
	return value, nil
}
