package api

import (
	"context"
	"crypto/subtle"
	"strings"

	"eventmarket/internal/client"
	"eventmarket/internal/config"
	"eventmarket/internal/domain"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	requestIDHeader       = "x-request-id"
	clientKeyUnknown      = "unknown"

	PermReadRecords  = "read:records"
	PermWriteRecords = "write:records"
	PermRawQuery     = "raw:query"
)

// Principal is the authenticated API client of a request.
type Principal struct {
	Name        string
	Permissions []string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// authorize checks the request principal against a permission. Requests
// without a principal passed through a surface with auth disabled. An empty
// permission list allows everything.
func authorize(ctx context.Context, required string) error {
	p, ok := principalFrom(ctx)
	if !ok || required == "" || len(p.Permissions) == 0 {
		return nil
	}
	for _, perm := range p.Permissions {
		if strings.TrimSpace(perm) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(action string) string {
	switch {
	case action == client.ActionFindRaw, action == client.ActionAggregateRaw:
		return PermRawQuery
	case client.IsWrite(action):
		return PermWriteRecords
	default:
		return PermReadRecords
	}
}

// keyring resolves api keys to principals. It is shared by the HTTP and gRPC
// surfaces.
type keyring struct {
	cfg             *config.APIConfig
	clientsByAPIKey map[string]config.APIClientKey
	apiKeyHeader    string
	extraHeader     string
}

func newKeyring(cfg *config.APIConfig) *keyring {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}

	apiKeyHeader := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderAPIKey))
	if apiKeyHeader == "" {
		apiKeyHeader = apiKeyHeaderDefault
	}
	extraHeader := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderExtra))
	if extraHeader == "" {
		extraHeader = apiExtraHeaderDefault
	}

	return &keyring{cfg: cfg, clientsByAPIKey: m, apiKeyHeader: apiKeyHeader, extraHeader: extraHeader}
}

func (k *keyring) authenticate(apiKey, extra string) (Principal, error) {
	if apiKey == "" || extra == "" {
		return Principal{}, errMissingCredentials
	}
	c, ok := k.clientsByAPIKey[apiKey]
	if !ok {
		return Principal{}, errInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(c.Extra), []byte(extra)) != 1 {
		return Principal{}, errInvalidExtra
	}
	return Principal{Name: c.Name, Permissions: c.Permissions}, nil
}

// AuthInterceptor authenticates gRPC calls and applies the rate limit.
type AuthInterceptor struct {
	cfg     *config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig, store domain.LimitStore, logger *zerolog.Logger) *AuthInterceptor {
	return &AuthInterceptor{
		cfg:     cfg,
		keys:    newKeyring(cfg),
		limiter: newRateLimiter(cfg, store, grpcLogger(logger)),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !a.cfg.Enabled {
			return handler(ctx, req)
		}

		if a.cfg.Auth.Enabled {
			md, ok := metadata.FromIncomingContext(ctx)
			if !ok {
				return nil, status.Error(codes.Unauthenticated, "missing metadata")
			}
			p, err := a.keys.authenticate(first(md.Get(a.keys.apiKeyHeader)), first(md.Get(a.keys.extraHeader)))
			if err != nil {
				return nil, grpcError(err)
			}
			ctx = withPrincipal(ctx, p)
		}
		if err := a.limiter.allow(ctx, a.clientKey(ctx)); err != nil {
			return nil, grpcError(err)
		}

		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if apiKey := first(md.Get(a.keys.apiKeyHeader)); apiKey != "" {
		return apiKey
	}
	return peerAddr(ctx)
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
