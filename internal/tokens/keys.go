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
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// LocalRSAKeySource is a Credentials implementation backed by an in-process
// RSA key pair. It stands in for the cloud KMS-backed signer in tests and
// the jitaccessctl demo driver, where reaching an actual cloud credentials
// service isn't appropriate; production deployments wire a Credentials
// implementation against the real signing API instead.
type LocalRSAKeySource struct {
	keyID      string
	privateKey jwk.Key
	publicSet  jwk.Set
}

// NewLocalRSAKeySource generates a fresh 2048-bit RSA key pair and wraps it
// as a Credentials implementation.
func NewLocalRSAKeySource(keyID string) (*LocalRSAKeySource, error) {
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}

	priv, err := jwk.FromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("wrapping private key: %w", err)
	}
	if err := priv.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, err
	}
	if err := priv.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return nil, err
	}

	pub, err := jwk.PublicKeyOf(priv)
	if err != nil {
		return nil, fmt.Errorf("deriving public key: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, err
	}

	return &LocalRSAKeySource{keyID: keyID, privateKey: priv, publicSet: set}, nil
}

// SignJWT implements Credentials by signing claims locally with the held
// RSA key.
func (s *LocalRSAKeySource) SignJWT(ctx context.Context, serviceAccount string, claims map[string]any) (string, error) {
	builder := jwt.NewBuilder()
	for k, v := range claims {
		builder = builder.Claim(k, v)
	}
	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("building token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, s.privateKey))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return string(signed), nil
}

// JWKSURL returns a placeholder URL; LocalRSAKeySource also implements
// keySetSource, so Verifier never dereferences it over the network.
func (s *LocalRSAKeySource) JWKSURL(serviceAccount string) string {
	return "local://jwks/" + serviceAccount
}

// KeySet implements keySetSource, handing the verifier the public key
// directly instead of fetching it over HTTP.
func (s *LocalRSAKeySource) KeySet(ctx context.Context, serviceAccount string) (jwk.Set, error) {
	return s.publicSet, nil
}
