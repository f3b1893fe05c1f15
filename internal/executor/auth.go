package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/studiowebux/restflow/internal/types"
)

// outgoingHeaders returns the request headers minus the disabled ones,
// with authentication applied last
func (t *Transport) outgoingHeaders(ctx context.Context, req *types.Request) (http.Header, error) {
	headers := http.Header{}
	for key, value := range req.Headers {
		if req.IsHeaderDisabled(key) {
			continue
		}
		headers.Set(key, value)
	}

	if err := t.applyAuth(ctx, headers, req.Auth); err != nil {
		return headers, err
	}
	return headers, nil
}

func (t *Transport) applyAuth(ctx context.Context, headers http.Header, auth types.Auth) error {
	switch auth.Type {
	case types.AuthBasic:
		headers.Set("Authorization", "Basic "+basicCredentials(auth.Username, auth.Password))
	case types.AuthBearer:
		if auth.Token != "" {
			headers.Set("Authorization", "Bearer "+auth.Token)
		}
	case types.AuthOAuth2:
		token, err := t.tokens.Token(ctx, auth.OAuth2)
		if err != nil {
			return err
		}
		headers.Set("Authorization", "Bearer "+token)
	case types.AuthNone, "":
	default:
		return fmt.Errorf("unknown auth type %q", auth.Type)
	}
	return nil
}

func basicCredentials(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
