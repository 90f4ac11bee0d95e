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
	"time"

	"go.opentelemetry.io/otel"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
)

var signerTracer = otel.Tracer("github.com/qen-cloud/jitaccess/internal/tokens")

// Signer mints activation tokens (spec §4.4, §6's signJwt).
type Signer struct {
	Credentials    Credentials
	ServiceAccount string
	Clock          accessmodel.Clock
	TokenValidity  time.Duration
}

// NewSigner constructs a Signer. serviceAccount is both the token issuer
// and audience (spec §4.4).
func NewSigner(creds Credentials, serviceAccount string, clock accessmodel.Clock, tokenValidity time.Duration) *Signer {
	return &Signer{Credentials: creds, ServiceAccount: serviceAccount, Clock: clock, TokenValidity: tokenValidity}
}

// Sign builds and signs the claim set for req, returning the compact JWT
// plus the issuedAt/expiresAt it embedded.
func (s *Signer) Sign(ctx context.Context, req *accessmodel.MpaRequest) (token string, issuedAt, expiresAt time.Time, err error) {
	ctx, span := signerTracer.Start(ctx, "tokens.Sign")
	defer span.End()

	issuedAt = s.Clock.Now()
	claims := ClaimsFromMpaRequest(s.ServiceAccount, s.ServiceAccount, issuedAt, s.TokenValidity, req)

	raw, err := s.Credentials.SignJWT(ctx, s.ServiceAccount, MarshalClaims(claims))
	if err != nil {
		span.RecordError(err)
		return "", time.Time{}, time.Time{}, accessmodel.New(accessmodel.Transient, "token signing failed: %v", err)
	}
	return raw, claims.IssuedAt, claims.Expiry, nil
}
