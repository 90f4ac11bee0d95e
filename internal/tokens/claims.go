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
	"strings"
	"time"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
)

// Claims is the activation token payload (spec §4.4). Every field is
// required on the wire; MarshalClaims and claimsFromToken are the only places
// that translate between this struct and the JWT claim set.
type Claims struct {
	Issuer        string
	Audience      string
	IssuedAt      time.Time
	Expiry        time.Time
	JTI           accessmodel.ActivationId
	Beneficiary   string
	Reviewers     []string
	Resource      string
	Role          string
	Type          accessmodel.ActivationType
	Justification string
	Start         time.Time
	End           time.Time
}

// MarshalClaims renders Claims as the JWT claim-set map, using epoch-second
// numeric dates per spec §4.4.
func MarshalClaims(c Claims) map[string]any {
	return map[string]any{
		"iss":           c.Issuer,
		"aud":           c.Audience,
		"iat":           c.IssuedAt.Unix(),
		"exp":           c.Expiry.Unix(),
		"jti":           string(c.JTI),
		"beneficiary":   c.Beneficiary,
		"reviewers":     c.Reviewers,
		"resource":      c.Resource,
		"role":          c.Role,
		"type":          string(c.Type),
		"justification": c.Justification,
		"start":         c.Start.Unix(),
		"end":           c.End.Unix(),
	}
}

// ClaimsFromMpaRequest builds the claim set for a pending MpaRequest (spec
// §4.4). The request must carry exactly one entitlement, enforced upstream
// by createMpaRequest.
func ClaimsFromMpaRequest(issuer, audience string, issuedAt time.Time, validity time.Duration, req *accessmodel.MpaRequest) Claims {
	reviewers := make([]string, len(req.Reviewers))
	for i, r := range req.Reviewers {
		reviewers[i] = r.Email
	}
	var resource, role string
	if len(req.Entitlements) > 0 {
		resource = req.Entitlements[0].Resource
		role = req.Entitlements[0].Role
	}
	return Claims{
		Issuer:        issuer,
		Audience:      audience,
		IssuedAt:      issuedAt,
		Expiry:        issuedAt.Add(validity),
		JTI:           req.ID,
		Beneficiary:   req.RequestingUser.Email,
		Reviewers:     reviewers,
		Resource:      resource,
		Role:          role,
		Type:          accessmodel.PeerApproval,
		Justification: req.Justification,
		Start:         req.StartTime,
		End:           req.EndTime(),
	}
}

// ToMpaRequest reconstructs the MpaRequest a verified Claims set represents.
// Reviewers come back in the order the token lists them, each carrying only
// an email: the token holds no reviewer ids.
func (c Claims) ToMpaRequest(requestingUserID string) *accessmodel.MpaRequest {
	reviewers := make([]accessmodel.UserId, len(c.Reviewers))
	for i, email := range c.Reviewers {
		reviewers[i] = accessmodel.UserId{Email: email}
	}
	return &accessmodel.MpaRequest{
		RequestCommon: accessmodel.RequestCommon{
			ID:             c.JTI,
			RequestingUser: accessmodel.UserId{ID: requestingUserID, Email: c.Beneficiary},
			Entitlements:   []accessmodel.RoleBinding{{Resource: c.Resource, Role: c.Role}},
			Justification:  c.Justification,
			StartTime:      c.Start,
			Duration:       c.End.Sub(c.Start),
		},
		Reviewers: reviewers,
	}
}

// obfuscationReplacer implements the reversible "." <-> "~" transform spec
// §4.4 describes as applied at the boundary before a token is embedded in a
// reviewer-facing URL. The core treats it as opaque; these helpers exist so
// the composition root and CLI don't each reinvent it.
var (
	dotToTilde = strings.NewReplacer(".", "~")
	tildeToDot = strings.NewReplacer("~", ".")
)

// Obfuscate applies the reversible URL-safety transform to a signed token.
func Obfuscate(token string) string { return dotToTilde.Replace(token) }

// Deobfuscate reverses Obfuscate.
func Deobfuscate(obfuscated string) string { return tildeToDot.Replace(obfuscated) }
