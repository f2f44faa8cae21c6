package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/pterm/pterm"
	"golang.org/x/oauth2"

	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/auth"
	"github.com/coresistem/sip-api-sub000/pkg/sdk"
)

// Provider yields the credential store and a resolved SDK session,
// constructed lazily and at most once per invocation.
type Provider struct {
	serverURL   string
	bearerToken string // ephemeral token that bypasses the credential store (for CI)

	storeOnce sync.Once
	store     *auth.FileStore
	storeErr  error

	sessionOnce sync.Once
	session     *sdk.Session
	sessionErr  error

	restoreOnce sync.Once
	restoreErr  error
}

// NewProvider constructs a Provider bound to the given server URL.
func NewProvider(serverURL string) *Provider {
	return &Provider{serverURL: serverURL}
}

// SetBearerToken injects an ephemeral bearer token; commands then run
// against that token instead of the stored pair.
func (p *Provider) SetBearerToken(token string) {
	p.bearerToken = token
}

// Store returns the file-backed credential/preference store.
func (p *Provider) Store() (*auth.FileStore, error) {
	p.storeOnce.Do(func() {
		p.store, p.storeErr = auth.NewFileStore()
	})
	return p.store, p.storeErr
}

// Session returns the SDK session, constructed but not yet resolved.
func (p *Provider) Session() (*sdk.Session, error) {
	p.sessionOnce.Do(func() {
		invalidated := func() {
			pterm.Warning.Println("Session expired; please run `sipctl auth login` again.")
		}

		// Ephemeral bearer path: no durable store, token attached by an
		// oauth2 static source under the SDK transport.
		if p.bearerToken != "" {
			base := &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{
					AccessToken: p.bearerToken,
					TokenType:   "Bearer",
				}),
			}
			p.session = sdk.NewSession(p.serverURL, sdk.NewMemoryStore(nil),
				sdk.WithBaseTransport(base),
				sdk.WithInvalidatedHook(invalidated),
			)
			return
		}

		store, err := p.Store()
		if err != nil {
			p.sessionErr = fmt.Errorf("failed to create credential store: %w", err)
			return
		}
		p.session = sdk.NewSession(p.serverURL, store,
			sdk.WithPreferences(store),
			sdk.WithInvalidatedHook(invalidated),
		)
	})
	return p.session, p.sessionErr
}

// ResolvedSession returns the session after the startup restoration
// barrier: stored credentials are either resolved into an identity or
// cleared before any command logic runs.
func (p *Provider) ResolvedSession(ctx context.Context) (*sdk.Session, error) {
	sess, err := p.Session()
	if err != nil {
		return nil, err
	}
	p.restoreOnce.Do(func() {
		p.restoreErr = sess.Restore(ctx)
	})
	if p.restoreErr != nil {
		return nil, fmt.Errorf("failed to restore session: %w", p.restoreErr)
	}
	return sess, nil
}
