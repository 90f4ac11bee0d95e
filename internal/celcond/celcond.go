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

// Package celcond recognizes and builds the CEL condition expressions the
// JIT access engine attaches meaning to: the two marker predicates that
// designate an eligible binding (spec §4.1) and the reserved time-window
// expression that designates a provisioned activation binding (spec §4.3,
// §4.6). It leans on google/cel-go's parser — the same library the example
// pack uses for admission- and routing-policy CEL fragments — rather than a
// full CEL evaluation runtime, because the engine never evaluates a
// condition against a runtime context; it only recognizes and constructs
// small, fixed-shape expressions.
package celcond

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Marker is one of the two reserved CEL expressions that designate an
// eligible binding's activation modality.
type Marker string

const (
	// NoMarker means the condition was not recognized as an eligibility
	// marker — either it failed to parse, or it is not structurally
	// identical to one of the two known markers (e.g. it has an
	// additional "&& ..." clause, which the engine deliberately refuses
	// to reason about).
	NoMarker Marker = ""

	// SelfApprovalMarker designates self-approval ("JIT") eligibility.
	SelfApprovalMarker Marker = "has({}.jitAccessConstraint)"

	// PeerApprovalMarker designates peer-approval ("MPA") eligibility.
	PeerApprovalMarker Marker = "has({}.multiPartyApprovalConstraint)"
)

// ActivationTitle is the reserved condition title that marks a provisioned
// binding as a live activation (spec §4.1, §4.6).
const ActivationTitle = "JIT access activation"

var (
	selfApprovalCanonical string
	peerApprovalCanonical string
)

func init() {
	var err error
	selfApprovalCanonical, err = canonicalize(string(SelfApprovalMarker))
	if err != nil {
		panic("celcond: self-approval marker failed to parse: " + err.Error())
	}
	peerApprovalCanonical, err = canonicalize(string(PeerApprovalMarker))
	if err != nil {
		panic("celcond: peer-approval marker failed to parse: " + err.Error())
	}
}

func newEnv() (*cel.Env, error) {
	// Parse-only: the marker and activation-window expressions are closed
	// literal/macro expressions, so no variable declarations are needed
	// and we never invoke the checker (cel.Env.Check) or a cel.Program.
	return cel.NewEnv()
}

func canonicalize(expr string) (string, error) {
	env, err := newEnv()
	if err != nil {
		return "", err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return "", iss.Err()
	}
	out, err := cel.AstToString(ast)
	if err != nil {
		return "", err
	}
	return out, nil
}

// ClassifyMarker parses expression and reports which marker it structurally
// matches, if any. A condition is recognized only if its trimmed expression
// is exactly one marker — "has({}.jitAccessConstraint) && resource.name=='X'"
// canonicalizes to a different (AND) shape than the bare marker and is
// correctly reported as NoMarker, per spec §4.1.
func ClassifyMarker(expression string) Marker {
	canon, err := canonicalize(strings.TrimSpace(expression))
	if err != nil {
		return NoMarker
	}
	switch canon {
	case selfApprovalCanonical:
		return SelfApprovalMarker
	case peerApprovalCanonical:
		return PeerApprovalMarker
	default:
		return NoMarker
	}
}

// IsActivationTitle reports whether title is the reserved activation title.
func IsActivationTitle(title string) bool {
	return strings.TrimSpace(title) == ActivationTitle
}

// activationWindowPattern matches the standard temporary-access CEL
// predicate the provisioner writes and the analyzer later recognizes:
//
//	request.time >= timestamp("<start>") && request.time < timestamp("<end>")
var activationWindowPattern = regexp.MustCompile(
	`^request\.time\s*>=\s*timestamp\("([^"]+)"\)\s*&&\s*request\.time\s*<\s*timestamp\("([^"]+)"\)$`,
)

// ParseActivationWindow extracts the [start, end) window from an activation
// binding's condition expression. It first validates the expression parses
// as CEL (rejecting garbage structurally, not just via regexp), then
// extracts the two RFC3339 timestamp literals.
func ParseActivationWindow(expression string) (start, end time.Time, ok bool) {
	trimmed := strings.TrimSpace(expression)
	if _, err := canonicalize(trimmed); err != nil {
		return time.Time{}, time.Time{}, false
	}

	m := activationWindowPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return time.Time{}, time.Time{}, false
	}

	start, err := time.Parse(time.RFC3339, m[1])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(time.RFC3339, m[2])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// BuildActivationExpression constructs the reserved temporary-access CEL
// predicate for the given window (spec §4.3's provisioning contract).
func BuildActivationExpression(start, end time.Time) (string, error) {
	expr := fmt.Sprintf(
		`request.time >= timestamp("%s") && request.time < timestamp("%s")`,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)
	if _, err := canonicalize(expr); err != nil {
		return "", fmt.Errorf("built activation expression failed to parse: %w", err)
	}
	return expr, nil
}
