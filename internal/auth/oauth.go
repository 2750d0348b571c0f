package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubUser is the federated identity resolved from a completed OAuth
// exchange. Email is already the chosen address: the one GitHub marks
// primary, or the first listed one when none is.
type GitHubUser struct {
	ID    int64  `json:"id"`    // GitHub's numeric user ID, stable across renames
	Login string `json:"login"` // GitHub username
	Email string `json:"email"`
}

// githubEmail is one element of the /user/emails response.
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub authorization-code
// flow. The code-for-token exchange is server-to-server using the client
// secret; the provider access token never leaves this process.
type GitHubProvider struct {
	config *oauth2.Config

	// apiBaseURL is overridden in tests to point at a local httptest server.
	apiBaseURL string
}

// NewGitHubProvider creates a GitHubProvider. callbackURL must exactly match
// the authorization callback URL registered with the OAuth app.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBaseURL: "https://api.github.com",
	}
}

// AuthURL returns the provider authorization URL with the anti-forgery state
// embedded. The state must have been persisted before the redirect so the
// callback can consume it.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the provider side of the flow: trades the authorization
// code for an access token, then resolves the federated identity and its
// email. All failures here are provider failures — the caller surfaces them
// as ExternalServiceError, not as authentication failures.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client attaches the bearer token to every request.
	client := p.config.Client(ctx, oauthToken)

	ghUser, err := p.fetchUser(client)
	if err != nil {
		return nil, err
	}

	email, err := p.fetchPrimaryEmail(client)
	if err != nil {
		return nil, err
	}
	ghUser.Email = email

	return ghUser, nil
}

func (p *GitHubProvider) fetchUser(client *http.Client) (*GitHubUser, error) {
	resp, err := client.Get(p.apiBaseURL + "/user")
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &ghUser, nil
}

// fetchPrimaryEmail lists the user's email addresses and picks the primary
// one, falling back to the first listed address. The /user payload alone is
// not enough: its email field is empty when the user hides it.
func (p *GitHubProvider) fetchPrimaryEmail(client *http.Client) (string, error) {
	resp, err := client.Get(p.apiBaseURL + "/user/emails")
	if err != nil {
		return "", fmt.Errorf("auth: calling GitHub /user/emails API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth: GitHub /user/emails API returned status %d", resp.StatusCode)
	}

	var emails []githubEmail
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", fmt.Errorf("auth: decoding GitHub /user/emails response: %w", err)
	}

	for _, e := range emails {
		if e.Primary {
			return e.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}

	return "", fmt.Errorf("auth: GitHub account has no email address")
}
