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

import "context"

// Credentials is the outbound credentials client (spec §6): signing is
// delegated to a cloud-managed service-account key, never held in process
// memory, and verification fetches that same account's public keys over its
// well-known JWKs URL. Production wiring implements this against the cloud
// KMS/IAM signing API; LocalRSAKeySource stands in for local tests and the
// CLI demo driver.
type Credentials interface {
	// SignJWT signs an RS256 JWT over claims using serviceAccount's key and
	// returns the compact serialization.
	SignJWT(ctx context.Context, serviceAccount string, claims map[string]any) (string, error)

	// JWKSURL derives the well-known JWKs endpoint for serviceAccount.
	JWKSURL(serviceAccount string) string
}
