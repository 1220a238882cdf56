package settings

import (
	"os"

	"github.com/pkg/errors"

	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/pipeline"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

const (
	defaultProvider = "anthropic"
	defaultModel    = "claude-sonnet-4-20250514"
)

// Resolver resolves the effective language-model credential for a user.
//
// Resolution order:
//  1. user is in an organization -> the organization's settings win
//  2. individual user -> the user's own settings
//  3. system defaults from the environment
//
// A user with no resolvable credential at any scope gets
// pipeline.ErrNoCredential, which the notes job reports as fatal_config.
type Resolver struct {
	store storage.Store
}

func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Resolve(userID, organizationID int64) (pipeline.Credential, error) {
	if organizationID != 0 {
		ps, err := r.store.GetProviderSettings(models.OrganizationScope, organizationID)
		if err == nil {
			return credentialFrom(ps), nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return pipeline.Credential{}, err
		}
		// Org users never fall back to personal settings, only to system
		// defaults.
		return systemDefault()
	}

	ps, err := r.store.GetProviderSettings(models.UserScope, userID)
	if err == nil {
		return credentialFrom(ps), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return pipeline.Credential{}, err
	}
	return systemDefault()
}

func credentialFrom(ps models.ProviderSettings) pipeline.Credential {
	cred := pipeline.Credential{
		Provider: ps.Provider,
		Model:    ps.Model,
		APIKey:   ps.APIKey,
	}
	if cred.Provider == "" {
		cred.Provider = defaultProvider
	}
	if cred.Model == "" {
		cred.Model = defaultModel
	}
	return cred
}

func systemDefault() (pipeline.Credential, error) {
	if key := os.Getenv("DEFAULT_ANTHROPIC_API_KEY"); key != "" {
		return pipeline.Credential{Provider: "anthropic", Model: defaultModel, APIKey: key}, nil
	}
	if key := os.Getenv("DEFAULT_OPENAI_API_KEY"); key != "" {
		return pipeline.Credential{Provider: "openai", Model: "gpt-4o", APIKey: key}, nil
	}
	return pipeline.Credential{}, pipeline.ErrNoCredential
}
