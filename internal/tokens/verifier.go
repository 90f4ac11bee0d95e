/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tokens

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.opentelemetry.io/otel"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
)

var verifierTracer = otel.Tracer("github.com/qen-cloud/jitaccess/internal/tokens")

// keySetSource lets a Credentials implementation hand the verifier a key
// set directly, bypassing the JWKs cache's HTTP fetch. LocalRSAKeySource
// implements this; production Credentials implementations typically don't,
// relying on jwk.Cache against the real well-known URL instead.
type keySetSource interface {
	KeySet(ctx context.Context, serviceAccount string) (jwk.Set, error)
}

// Verifier validates activation tokens (spec §4.4).
type Verifier struct {
	Credentials    Credentials
	ServiceAccount string
	Clock          accessmodel.Clock

	cache *jwk.Cache
}

// NewVerifier constructs a Verifier. It registers serviceAccount's JWKs URL
// with a shared, refresh-bounded cache (spec §5, "JWKs are cached with a
// refresh interval bounded by the keys' stated validity").
func NewVerifier(creds Credentials, serviceAccount string, clock accessmodel.Clock) *Verifier {
	v := &Verifier{Credentials: creds, ServiceAccount: serviceAccount, Clock: clock}
	if _, ok := creds.(keySetSource); !ok {
		v.cache = jwk.NewCache(context.Background(), jwk.WithRefreshWindow(time.Hour))
		_ = v.cache.Register(creds.JWKSURL(serviceAccount))
	}
	return v
}

func (v *Verifier) keySet(ctx context.Context) (jwk.Set, error) {
	if src, ok := v.Credentials.(keySetSource); ok {
		return src.KeySet(ctx, v.ServiceAccount)
	}
	return v.cache.Get(ctx, v.Credentials.JWKSURL(v.ServiceAccount))
}

// Verify checks signature, algorithm, issuer, audience, and expiry, then
// returns the decoded Claims (spec §4.4's verification rules).
func (v *Verifier) Verify(ctx context.Context, token string) (Claims, error) {
	ctx, span := verifierTracer.Start(ctx, "tokens.Verify")
	defer span.End()

	keySet, err := v.keySet(ctx)
	if err != nil {
		span.RecordError(err)
		return Claims{}, accessmodel.New(accessmodel.Transient, "fetching verification keys failed: %v", err)
	}

	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.ServiceAccount),
		jwt.WithAudience(v.ServiceAccount),
		jwt.WithRequiredClaim(jwt.IssuedAtKey),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithClock(jwtClock{v.Clock}),
	)
	if err != nil {
		return Claims{}, accessmodel.New(accessmodel.TokenInvalid, "token verification failed: %v", err)
	}

	return claimsFromToken(parsed)
}

func claimsFromToken(t jwt.Token) (Claims, error) {
	c := Claims{
		Issuer:   t.Issuer(),
		Audience: first(t.Audience()),
		IssuedAt: t.IssuedAt(),
		Expiry:   t.Expiration(),
	}

	if err := getString(t, "jti", func(s string) { c.JTI = accessmodel.ActivationId(s) }); err != nil {
		return Claims{}, err
	}
	if err := getString(t, "beneficiary", func(s string) { c.Beneficiary = s }); err != nil {
		return Claims{}, err
	}
	if err := getString(t, "resource", func(s string) { c.Resource = s }); err != nil {
		return Claims{}, err
	}
	if err := getString(t, "role", func(s string) { c.Role = s }); err != nil {
		return Claims{}, err
	}
	if err := getString(t, "type", func(s string) { c.Type = accessmodel.ActivationType(s) }); err != nil {
		return Claims{}, err
	}
	if err := getString(t, "justification", func(s string) { c.Justification = s }); err != nil {
		return Claims{}, err
	}

	var reviewersRaw any
	if err := t.Get("reviewers", &reviewersRaw); err != nil {
		return Claims{}, accessmodel.New(accessmodel.TokenInvalid, "missing required claim %q", "reviewers")
	}
	for _, r := range toSlice(reviewersRaw) {
		if s, ok := r.(string); ok {
			c.Reviewers = append(c.Reviewers, s)
		}
	}

	if err := getEpoch(t, "start", func(tm time.Time) { c.Start = tm }); err != nil {
		return Claims{}, err
	}
	if err := getEpoch(t, "end", func(tm time.Time) { c.End = tm }); err != nil {
		return Claims{}, err
	}

	return c, nil
}

func getString(t jwt.Token, key string, set func(string)) error {
	var v any
	if err := t.Get(key, &v); err != nil {
		return accessmodel.New(accessmodel.TokenInvalid, "missing required claim %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return accessmodel.New(accessmodel.TokenInvalid, "claim %q has the wrong type", key)
	}
	set(s)
	return nil
}

func getEpoch(t jwt.Token, key string, set func(time.Time)) error {
	var v any
	if err := t.Get(key, &v); err != nil {
		return accessmodel.New(accessmodel.TokenInvalid, "missing required claim %q", key)
	}
	switch n := v.(type) {
	case float64:
		set(time.Unix(int64(n), 0).UTC())
	case int64:
		set(time.Unix(n, 0).UTC())
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return accessmodel.New(accessmodel.TokenInvalid, "claim %q is not numeric", key)
		}
		set(time.Unix(i, 0).UTC())
	default:
		return accessmodel.New(accessmodel.TokenInvalid, "claim %q has the wrong type", key)
	}
	return nil
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func toSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

// jwtClock adapts accessmodel.Clock to jwt.Clock so verification deadlines
// are evaluated against the engine's injectable notion of "now" rather than
// time.Now directly (spec §6, "Clock — now()").
type jwtClock struct{ c accessmodel.Clock }

func (j jwtClock) Now() time.Time { return j.c.Now() }
