package policyopa

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"certus/internal/domain"
)

const issuancePolicy = `package certus.policy

deny[entry] {
  input.subject.namespace == "quarantine"
  entry := {"code": "NAMESPACE_QUARANTINED", "message": "namespace is quarantined"}
}

deny[entry] {
  input.subject.id == ""
  entry := {"code": "SUBJECT_ID_REQUIRED", "message": "subject id is required"}
}

deny[entry] {
  input.metadata.environment == "untrusted"
  entry := {"code": "ENVIRONMENT_UNTRUSTED", "message": "untrusted environments may not issue proofs"}
}

default allow = true

allow = false {
  count(deny) > 0
}

result := {"allow": allow, "deny": [e | e := deny[_]]}
`

func TestEngineDeterministic(t *testing.T) {
	engine := newEngine(t)
	input := basePolicyInput()

	first, err := engine.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	second, err := engine.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected deterministic evaluation")
	}
	if !first.Allow {
		t.Fatalf("expected baseline input to be allowed: %+v", first.Deny)
	}
	if len(first.Deny) != 0 {
		t.Fatalf("expected empty deny list, got %+v", first.Deny)
	}
	if engine.BundleHash() == "" {
		t.Fatalf("expected bundle hash")
	}
	if engine.BundleID() != "issuance-test" {
		t.Fatalf("unexpected bundle id %q", engine.BundleID())
	}
}

func TestEnginePolicyDenies(t *testing.T) {
	engine := newEngine(t)

	tests := []struct {
		name   string
		mutate func(*domain.PolicyInput)
		want   []string
	}{
		{
			name: "quarantined namespace",
			mutate: func(in *domain.PolicyInput) {
				in.Subject.Namespace = "quarantine"
			},
			want: []string{"NAMESPACE_QUARANTINED"},
		},
		{
			name: "missing subject id",
			mutate: func(in *domain.PolicyInput) {
				in.Subject.ID = ""
			},
			want: []string{"SUBJECT_ID_REQUIRED"},
		},
		{
			name: "untrusted environment",
			mutate: func(in *domain.PolicyInput) {
				in.Metadata = map[string]string{"environment": "untrusted"}
			},
			want: []string{"ENVIRONMENT_UNTRUSTED"},
		},
		{
			name: "multiple denies ordered by code",
			mutate: func(in *domain.PolicyInput) {
				in.Subject.Namespace = "quarantine"
				in.Subject.ID = ""
			},
			want: []string{"NAMESPACE_QUARANTINED", "SUBJECT_ID_REQUIRED"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := basePolicyInput()
			tt.mutate(&input)

			out, err := engine.Evaluate(context.Background(), input)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if out.Allow {
				t.Fatalf("expected deny")
			}
			got := make([]string, 0, len(out.Deny))
			for _, deny := range out.Deny {
				got = append(got, deny.Code)
			}
			if !reflect.DeepEqual(tt.want, got) {
				t.Fatalf("expected deny codes %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNilEngineAllows(t *testing.T) {
	var engine *Engine
	out, err := engine.Evaluate(context.Background(), basePolicyInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !out.Allow {
		t.Fatalf("expected nil engine to allow")
	}
}

func TestEngineAllowsComparisonBuiltins(t *testing.T) {
	dir := t.TempDir()
	regoContent := `package certus.policy

deny[entry] {
  count(input.metadata) > 8
  entry := {"code": "TOO_MUCH_METADATA", "message": "too many metadata keys"}
}

deny[entry] {
  count(input.subject.id) >= 256
  entry := {"code": "SUBJECT_ID_TOO_LONG", "message": "subject id too long"}
}

deny[entry] {
  count(input.subject.id) < 1
  entry := {"code": "SUBJECT_ID_REQUIRED", "message": "subject id is required"}
}

default allow = true

allow = false {
  count(deny) > 0
}

result := {"allow": allow, "deny": [e | e := deny[_]]}
`
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	engine, err := NewEngineFromBundlePath(context.Background(), dir, "comparisons")
	if err != nil {
		t.Fatalf("expected comparison builtins to be allowed: %v", err)
	}

	out, err := engine.Evaluate(context.Background(), basePolicyInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !out.Allow {
		t.Fatalf("expected baseline input to be allowed: %+v", out.Deny)
	}
}

func TestEngineRejectsTimeBuiltin(t *testing.T) {
	rejectBuiltin(t, "time.now_ns()")
}

func TestEngineRejectsHttpSend(t *testing.T) {
	rejectBuiltin(t, "http.send({\"method\": \"get\", \"url\": \"https://example.com\"})")
}

func TestEngineRejectsRand(t *testing.T) {
	rejectBuiltin(t, "rand.intn(10)")
}

func rejectBuiltin(t *testing.T, expr string) {
	t.Helper()
	dir := t.TempDir()
	regoContent := `package certus.policy
result := {"allow": true, "deny": []} {
  ` + expr + `
}`
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}

	_, err := NewEngineFromBundlePath(context.Background(), dir, "test")
	if err == nil {
		t.Fatalf("expected builtin to be rejected")
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(issuancePolicy), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	engine, err := NewEngineFromBundlePath(context.Background(), dir, "issuance-test")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func basePolicyInput() domain.PolicyInput {
	return domain.PolicyInput{
		Hash: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		Subject: domain.Subject{
			Type:      "file",
			Namespace: "releases",
			ID:        "app-1.2.3.tar.gz",
		},
	}
}
