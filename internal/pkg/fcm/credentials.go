package fcm

import (
	"encoding/json"
	"fmt"
	"os"
)

// ServiceAccount is the Firebase service-account credential used both to
// identify the project and to sign OAuth bearer assertions.
type ServiceAccount struct {
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

const defaultTokenURI = "https://oauth2.googleapis.com/token"

// LoadServiceAccount reads a service-account JSON file
func LoadServiceAccount(path string) (*ServiceAccount, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}

	var account ServiceAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, fmt.Errorf("invalid service account file: %w", err)
	}
	if account.ProjectID == "" || account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, fmt.Errorf("service account file is missing required fields")
	}
	if account.TokenURI == "" {
		account.TokenURI = defaultTokenURI
	}
	return &account, nil
}
