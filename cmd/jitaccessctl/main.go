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

// jitaccessctl drives a real accessengine.Engine entirely in-process,
// against the demo package's in-memory policy analyzer and IAM client,
// instead of talking to a deployed server over REST (out of scope per the
// core's own design). It exists for local experimentation and for
// demonstrating the full eligibility -> activation lifecycle end to end
// without a cloud project behind it, the same role cmd/legatorctl plays
// for the control plane it was copied from.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/qen-cloud/jitaccess/internal/accessengine"
	"github.com/qen-cloud/jitaccess/internal/accessmodel"
	"github.com/qen-cloud/jitaccess/internal/config"
	"github.com/qen-cloud/jitaccess/internal/demo"
	"github.com/qen-cloud/jitaccess/internal/telemetry"
	"github.com/qen-cloud/jitaccess/internal/tokens"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// session bundles the assembled Engine with the demo IAM client, so the
// "policy" subcommand can render the underlying project policy that
// ListProjects/Activate/Approve otherwise only mutate through the core's
// narrow interfaces.
type session struct {
	engine *accessengine.Engine
	iam    *demo.IAMClient
}

func newSession() (*session, error) {
	cfg := config.Default()
	cfg.Scope = "projects/demo-project-1"

	creds, err := tokens.NewLocalRSAKeySource("jitaccessctl-demo-key")
	if err != nil {
		return nil, fmt.Errorf("generating demo signing key: %w", err)
	}
	cfg.ServiceAccount = "jitaccess-demo@example.iam.gserviceaccount.com"

	iam := demo.NewIAMClient()
	zl, _ := zap.NewDevelopment()
	log := zapr.NewLogger(zl)

	eng, err := accessengine.New(cfg, accessengine.Dependencies{
		PolicyAnalyzerClient: demo.NewPolicyAnalyzer(),
		IAMClient:            iam,
		Credentials:          creds,
	}, log)
	if err != nil {
		return nil, err
	}
	return &session{engine: eng, iam: iam}, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("no command given")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "version":
		fmt.Printf("jitaccessctl %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	case "help", "--help", "-h":
		printUsage()
		return nil
	}

	ctx := context.Background()
	shutdown, err := telemetry.InitTraceProvider(ctx, os.Getenv("JITACCESS_OTLP_ENDPOINT"), version)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer shutdown(ctx)

	sess, err := newSession()
	if err != nil {
		return err
	}

	switch command {
	case "projects":
		return sess.runProjects(ctx, rest)
	case "eligibilities":
		return sess.runEligibilities(ctx, rest)
	case "reviewers":
		return sess.runReviewers(ctx, rest)
	case "jit":
		return sess.runJit(ctx, rest)
	case "mpa-request":
		return sess.runMpaRequest(ctx, rest)
	case "approve":
		return sess.runApprove(ctx, rest)
	case "policy":
		return sess.runPolicy(ctx, rest)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage() {
	fmt.Print(`Usage: jitaccessctl <command> [args...]

Runs entirely against the built-in demo fleet (alice/bob/carol on
demo-project-1); see internal/demo for the seeded eligibilities.

Commands:
  projects <id> <email>
      List projects the user has any eligibility on.
  eligibilities <id> <email> <project>
      List a user's eligibilities on a project.
  reviewers <id> <email> <project> <role> <JIT|MPA>
      List candidate reviewers for an eligibility.
  jit <id> <email> <justification> <duration> <project:role>...
      Create and immediately activate a self-approval request.
  mpa-request <id> <email> <project> <role> <justification> <duration> <reviewer-id:email,...>
      Create an MPA request and print its signed, obfuscated token.
  approve <approver-email> <obfuscated-token>
      Verify a token and approve the MPA request it represents.
  policy <project>
      Dump the demo IAM policy currently held for a project.
  version
      Print build metadata.
`)
}

func parseUser(args []string) (accessmodel.UserId, []string, error) {
	if len(args) < 2 {
		return accessmodel.UserId{}, nil, errors.New("expected <id> <email>")
	}
	return accessmodel.UserId{ID: args[0], Email: args[1]}, args[2:], nil
}

func parseRoleBinding(s string) (accessmodel.RoleBinding, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return accessmodel.RoleBinding{}, fmt.Errorf("expected <project>:<role>, got %q", s)
	}
	project := accessmodel.ProjectId(parts[0])
	return accessmodel.RoleBinding{Resource: project.FullResourceName(), Role: parts[1]}, nil
}

func (s *session) runProjects(ctx context.Context, args []string) error {
	user, rest, err := parseUser(args)
	if err != nil {
		return fmt.Errorf("usage: jitaccessctl projects <id> <email>: %w", err)
	}
	if len(rest) != 0 {
		return errors.New("usage: jitaccessctl projects <id> <email>")
	}

	projects, err := s.engine.ListProjects(ctx, user)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{string(p)})
	}
	renderTable(os.Stdout, []string{"PROJECT"}, rows)
	return nil
}

func (s *session) runEligibilities(ctx context.Context, args []string) error {
	user, rest, err := parseUser(args)
	if err != nil || len(rest) != 1 {
		return errors.New("usage: jitaccessctl eligibilities <id> <email> <project>")
	}
	project := accessmodel.ProjectId(rest[0])

	set, err := s.engine.ListEligibilities(ctx, user, project)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(set.Items))
	for _, e := range set.Items {
		rows = append(rows, []string{e.RoleBinding.Resource, e.RoleBinding.Role, string(e.ActivationType), string(e.Status)})
	}
	renderTable(os.Stdout, []string{"RESOURCE", "ROLE", "TYPE", "STATUS"}, rows)
	for _, w := range set.Warnings {
		fmt.Fprintf(os.Stdout, "warning: %s\n", w)
	}
	return nil
}

func (s *session) runReviewers(ctx context.Context, args []string) error {
	user, rest, err := parseUser(args)
	if err != nil || len(rest) != 3 {
		return errors.New("usage: jitaccessctl reviewers <id> <email> <project> <role> <JIT|MPA>")
	}
	project := accessmodel.ProjectId(rest[0])
	eligibility := accessmodel.Eligibility{
		RoleBinding:    accessmodel.RoleBinding{Resource: project.FullResourceName(), Role: rest[1]},
		ActivationType: accessmodel.ActivationType(rest[2]),
	}

	reviewers, err := s.engine.ListReviewers(ctx, user, eligibility)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(reviewers))
	for _, r := range reviewers {
		rows = append(rows, []string{r.ID, r.Email})
	}
	renderTable(os.Stdout, []string{"ID", "EMAIL"}, rows)
	return nil
}

func (s *session) runJit(ctx context.Context, args []string) error {
	user, rest, err := parseUser(args)
	if err != nil || len(rest) < 3 {
		return errors.New("usage: jitaccessctl jit <id> <email> <justification> <duration> <project:role>...")
	}
	justification := rest[0]
	duration, err := time.ParseDuration(rest[1])
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	entitlements := make([]accessmodel.RoleBinding, 0, len(rest)-2)
	for _, arg := range rest[2:] {
		rb, err := parseRoleBinding(arg)
		if err != nil {
			return err
		}
		entitlements = append(entitlements, rb)
	}

	req, err := s.engine.CreateJitRequest(ctx, user, entitlements, justification, s.engine.Clock.Now(), duration)
	if err != nil {
		return err
	}
	activation, err := s.engine.Activate(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Activated %s\n", req.ID)
	fmt.Printf("Window: %s - %s\n", formatTimeOrDash(req.StartTime), formatTimeOrDash(activation.EndTime))
	return nil
}

func (s *session) runMpaRequest(ctx context.Context, args []string) error {
	user, rest, err := parseUser(args)
	if err != nil || len(rest) < 5 {
		return errors.New("usage: jitaccessctl mpa-request <id> <email> <project> <role> <justification> <duration> <reviewer-id:email,...>")
	}
	project := accessmodel.ProjectId(rest[0])
	role := rest[1]
	justification := rest[2]
	duration, err := time.ParseDuration(rest[3])
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	reviewers, err := parseReviewers(rest[4])
	if err != nil {
		return err
	}

	entitlement := accessmodel.RoleBinding{Resource: project.FullResourceName(), Role: role}
	req, err := s.engine.CreateMpaRequest(ctx, user, entitlement, reviewers, justification, s.engine.Clock.Now(), duration)
	if err != nil {
		return err
	}

	token, issuedAt, expiresAt, err := s.engine.SignToken(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Request: %s\n", req.ID)
	fmt.Printf("Issued: %s  Expires: %s\n", formatTimeOrDash(issuedAt), formatTimeOrDash(expiresAt))
	fmt.Printf("Token (obfuscated, hand to a reviewer): %s\n", tokens.Obfuscate(token))
	return nil
}

func parseReviewers(spec string) ([]accessmodel.UserId, error) {
	parts := strings.Split(spec, ",")
	out := make([]accessmodel.UserId, 0, len(parts))
	for _, p := range parts {
		idEmail := strings.SplitN(p, ":", 2)
		if len(idEmail) != 2 {
			return nil, fmt.Errorf("expected <id>:<email>, got %q", p)
		}
		out = append(out, accessmodel.UserId{ID: idEmail[0], Email: idEmail[1]})
	}
	return out, nil
}

// runApprove takes only an email for the approver, not an <id> <email>
// pair like the other commands: the activation token's reviewers claim
// carries emails only (spec §4.4), so the MpaRequest reconstructed by
// VerifyToken has reviewer UserIds with an empty ID field. Equal is
// ID-based, so the approver passed to Approve must match that shape; in a
// deployed REST façade this is where the identity-aware proxy's verified
// caller would be reconciled against the token's reviewer list by email,
// a step this core-only CLI stands in for directly.
func (s *session) runApprove(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: jitaccessctl approve <approver-email> <obfuscated-token>")
	}
	approver := accessmodel.UserId{Email: args[0]}
	token := tokens.Deobfuscate(args[1])

	claims, err := s.engine.VerifyToken(ctx, token)
	if err != nil {
		return err
	}
	req := claims.ToMpaRequest(claims.Beneficiary)

	activation, err := s.engine.Approve(ctx, approver, req)
	if err != nil {
		if accessmodel.KindOf(err) == accessmodel.AlreadyExists {
			fmt.Println("Already approved by another reviewer; treating as success.")
			return nil
		}
		return err
	}
	fmt.Printf("Approved %s\n", req.ID)
	fmt.Printf("Window: %s - %s\n", formatTimeOrDash(req.StartTime), formatTimeOrDash(activation.EndTime))
	return nil
}

func (s *session) runPolicy(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: jitaccessctl policy <project>")
	}
	project := accessmodel.ProjectId(args[0])
	policy := s.iam.Policy(project)

	rows := make([][]string, 0, len(policy.Bindings))
	for _, b := range policy.Bindings {
		rows = append(rows, []string{b.Member, b.Role, b.Title, b.Description})
	}
	renderTable(os.Stdout, []string{"MEMBER", "ROLE", "CONDITION TITLE", "DESCRIPTION"}, rows)
	fmt.Fprintf(os.Stdout, "\netag: %s\n", policy.Etag)
	return nil
}
