package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/oauth"
)

// OauthMechanism exposes a TokenProvider as a SASL/OAUTHBEARER mechanism.
// The client calls it for every connection it authenticates. Empty or already
// expired tokens are refused before they reach the broker.
func OauthMechanism(p TokenProvider) sasl.Mechanism {
	return oauth.Oauth(
		func(ctx context.Context) (oauth.Auth, error) {
			token, err := p.Mint(ctx)
			if err != nil {
				return oauth.Auth{}, err
			}

			switch {
			case token.Empty():
				return oauth.Auth{}, fmt.Errorf("%w: provider returned an empty token", ErrNoToken)
			case token.Expired(time.Now()):
				return oauth.Auth{}, fmt.Errorf("%w: token expired at %s", ErrNoToken, token.ExpiresAt.Format(time.RFC3339))
			}

			return oauth.Auth{Token: token.Value}, nil
		},
	)
}

