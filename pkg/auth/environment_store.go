package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore. They match the names the
// config loader reads.
const (
	EmailEnv    = "JIRAHARVEST_EMAIL"
	APITokenEnv = "JIRAHARVEST_API_TOKEN"
	BaseURLEnv  = "JIRAHARVEST_BASE_URL"
)

// EnvironmentStore is a read-only store over environment variables
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. An empty email matches it, as
// does the email it carries.
func (e *EnvironmentStore) Retrieve(email string) (*Account, error) {
	envEmail := os.Getenv(EmailEnv)
	token := os.Getenv(APITokenEnv)
	if envEmail == "" || token == "" {
		return nil, ErrCredentialsNotFound
	}
	if email != "" && email != envEmail {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Email:        envEmail,
		APIToken:     token,
		Site:         os.Getenv(BaseURLEnv),
		LastModified: time.Now(),
	}, nil
}

// List returns the environment account if one is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(email string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for email
func (e *EnvironmentStore) Exists(email string) bool {
	_, err := e.Retrieve(email)
	return err == nil
}
