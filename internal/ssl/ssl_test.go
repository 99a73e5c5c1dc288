package ssl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opencivic/memberhub/internal/config"
	"github.com/opencivic/memberhub/internal/domain"
)

type fakeRunner struct {
	calls  [][]string
	output []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.output, f.err
}

func verifiedDomain() *domain.CustomDomain {
	at := time.Now().UTC()
	return &domain.CustomDomain{
		ID:         "d-1",
		Domain:     "members.example.org",
		Status:     domain.DomainVerified,
		VerifiedAt: &at,
	}
}

func TestIssueRequiresVerifiedDomain(t *testing.T) {
	runner := &fakeRunner{}
	issuer := NewIssuer(config.DomainsConfig{CertbotBin: "certbot"}, config.EnvProduction, runner)

	d := verifiedDomain()
	d.Status = domain.DomainPending
	if _, err := issuer.Issue(context.Background(), d); err != ErrDomainNotVerified {
		t.Fatalf("expected ErrDomainNotVerified, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatal("certbot must not run for unverified domains")
	}
}

func TestIssueSimulatedOutsideProduction(t *testing.T) {
	runner := &fakeRunner{}
	issuer := NewIssuer(config.DomainsConfig{CertbotBin: "certbot"}, config.EnvDevelopment, runner)

	res, err := issuer.Issue(context.Background(), verifiedDomain())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !res.Simulated || res.Issued {
		t.Fatalf("expected simulated result, got %+v", res)
	}
	if len(runner.calls) != 0 {
		t.Fatal("certbot must not run outside production")
	}
}

func TestIssueRunsCertbotArgv(t *testing.T) {
	runner := &fakeRunner{output: []byte("Successfully received certificate")}
	cfg := config.DomainsConfig{
		CertbotBin:  "/usr/bin/certbot",
		CertbotArgs: []string{"--webroot-path", "/var/www/acme"},
	}
	issuer := NewIssuer(cfg, config.EnvProduction, runner)

	res, err := issuer.Issue(context.Background(), verifiedDomain())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !res.Issued {
		t.Fatalf("expected issued, got %+v", res)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("expected one certbot call, got %d", len(runner.calls))
	}
	call := runner.calls[0]
	if call[0] != "/usr/bin/certbot" {
		t.Fatalf("wrong binary: %v", call)
	}
	// Domain must arrive as its own argv element, never inside a shell string.
	foundDomain := false
	for i, arg := range call {
		if arg == "-d" && i+1 < len(call) && call[i+1] == "members.example.org" {
			foundDomain = true
		}
	}
	if !foundDomain {
		t.Fatalf("domain not passed via -d flag: %v", call)
	}
}

func TestIssueWrapsCertbotFailure(t *testing.T) {
	runner := &fakeRunner{output: []byte("too many certificates"), err: errors.New("exit status 1")}
	issuer := NewIssuer(config.DomainsConfig{CertbotBin: "certbot"}, config.EnvProduction, runner)

	_, err := issuer.Issue(context.Background(), verifiedDomain())
	if !errors.Is(err, ErrIssuanceFailed) {
		t.Fatalf("expected ErrIssuanceFailed, got %v", err)
	}
}

func TestIssueRunsReloadCommand(t *testing.T) {
	runner := &fakeRunner{}
	cfg := config.DomainsConfig{
		CertbotBin:    "certbot",
		ReloadCommand: []string{"systemctl", "reload", "nginx"},
	}
	issuer := NewIssuer(cfg, config.EnvProduction, runner)

	if _, err := issuer.Issue(context.Background(), verifiedDomain()); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected certbot + reload calls, got %d", len(runner.calls))
	}
	reload := runner.calls[1]
	if reload[0] != "systemctl" || reload[1] != "reload" || reload[2] != "nginx" {
		t.Fatalf("unexpected reload argv: %v", reload)
	}
}
