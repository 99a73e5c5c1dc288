// Package ssl provisions TLS certificates for verified custom domains
// by driving the certbot CLI on the host.
package ssl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/opencivic/memberhub/internal/config"
	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/logger"
)

var (
	// ErrDomainNotVerified is returned when the domain has not completed
	// DNS verification.
	ErrDomainNotVerified = errors.New("domain must be verified before ssl issuance")

	// ErrIssuanceFailed wraps certbot failures. The wrapped error carries
	// the tool's combined output for diagnostics.
	ErrIssuanceFailed = errors.New("certificate issuance failed")
)

// Runner executes an external command and returns its combined output.
// It exists so tests can run issuance without a certbot binary.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the host via os/exec.
type ExecRunner struct {
	Timeout time.Duration
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Issuer obtains certificates for verified domains.
type Issuer struct {
	cfg    config.DomainsConfig
	env    config.Environment
	runner Runner
}

// NewIssuer creates an Issuer. A nil runner defaults to ExecRunner.
func NewIssuer(cfg config.DomainsConfig, env config.Environment, runner Runner) *Issuer {
	if runner == nil {
		runner = &ExecRunner{}
	}
	return &Issuer{cfg: cfg, env: env, runner: runner}
}

// Result reports the outcome of an issuance attempt.
type Result struct {
	Domain    string `json:"domain"`
	Issued    bool   `json:"issued"`
	Simulated bool   `json:"simulated,omitempty"`
	Message   string `json:"message"`
}

// Issue runs certbot for the domain. The domain must be in verified
// status. Outside production the call is a no-op that reports what
// would have run.
//
// Certbot is always invoked with a discrete argument vector; domain
// names never pass through a shell.
func (i *Issuer) Issue(ctx context.Context, d *domain.CustomDomain) (*Result, error) {
	if !d.IsVerified() {
		return nil, ErrDomainNotVerified
	}

	args := i.certbotArgs(d.Domain)

	if !i.env.IsProduction() {
		logger.Info("ssl issuance simulated outside production",
			"domain", d.Domain, "command", i.cfg.CertbotBin, "args", strings.Join(args, " "))
		return &Result{
			Domain:    d.Domain,
			Simulated: true,
			Message:   fmt.Sprintf("certificate issuance skipped in %s environment", i.env),
		}, nil
	}

	logger.Info("issuing certificate", "domain", d.Domain, "domain_id", d.ID)
	output, err := i.runner.Run(ctx, i.cfg.CertbotBin, args...)
	if err != nil {
		logger.Error("certbot failed", "domain", d.Domain, "error", err.Error(), "output", truncate(string(output), 2000))
		return nil, fmt.Errorf("%w: %v: %s", ErrIssuanceFailed, err, truncate(string(output), 500))
	}

	if err := i.reloadProxy(ctx); err != nil {
		// The certificate exists; serving it just needs a reload. Surface
		// the problem but report success.
		logger.Error("proxy reload failed after issuance", "domain", d.Domain, "error", err.Error())
		return &Result{
			Domain:  d.Domain,
			Issued:  true,
			Message: "certificate issued; proxy reload failed and requires manual intervention",
		}, nil
	}

	logger.Info("certificate issued", "domain", d.Domain, "domain_id", d.ID)
	return &Result{
		Domain:  d.Domain,
		Issued:  true,
		Message: "certificate issued",
	}, nil
}

// certbotArgs builds the argv tail for one domain. Extra operator args
// from configuration are appended before the domain flag.
func (i *Issuer) certbotArgs(name string) []string {
	args := []string{"certonly", "--non-interactive", "--agree-tos", "--webroot"}
	args = append(args, i.cfg.CertbotArgs...)
	args = append(args, "--cert-name", name, "-d", name)
	return args
}

// reloadProxy runs the configured reload command, if any. The command
// is a pre-split argv from configuration.
func (i *Issuer) reloadProxy(ctx context.Context) error {
	if len(i.cfg.ReloadCommand) == 0 {
		return nil
	}
	output, err := i.runner.Run(ctx, i.cfg.ReloadCommand[0], i.cfg.ReloadCommand[1:]...)
	if err != nil {
		return fmt.Errorf("reload proxy: %v: %s", err, truncate(string(output), 500))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
