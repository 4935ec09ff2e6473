package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig describes how to reach the appliance shell.
type SSHConfig struct {
	Address        string        `yaml:"address" json:"address" validate:"required,hostname_port"`
	User           string        `yaml:"user" json:"user" validate:"required"`
	Password       string        `yaml:"password" json:"password"`
	KeyPath        string        `yaml:"keyPath" json:"keyPath"`
	KnownHostsPath string        `yaml:"knownHostsPath" json:"knownHostsPath"`
	DialTimeout    time.Duration `yaml:"dialTimeout" json:"dialTimeout"`
}

// ResilienceConfig controls retries and the circuit breaker around session
// setup. The command itself is never retried.
type ResilienceConfig struct {
	BackoffSettings        func() backoff.BackOff
	CircuitBreakerSettings gobreaker.Settings
}

func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		BackoffSettings: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.Multiplier = 1.5
			b.RandomizationFactor = 0.5
			b.MaxElapsedTime = 30 * time.Second
			return backoff.WithMaxRetries(b, 5)
		},
		CircuitBreakerSettings: gobreaker.Settings{
			Name:        "ssh-session",
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		},
	}
}

// remoteSession is the part of *ssh.Session the SSH executor uses.
type remoteSession interface {
	Start(cmd string) error
	Wait() error
	Signal(sig ssh.Signal) error
	Close() error
}

// sessionOpener opens a session whose stdout and stderr both go to out.
type sessionOpener interface {
	openSession(ctx context.Context, out io.Writer) (remoteSession, error)
}

// ResilientSSHClient wraps an ssh.Client with backoff retries and a circuit
// breaker on session creation.
type ResilientSSHClient struct {
	sshClient *ssh.Client
	cb        *gobreaker.CircuitBreaker
	resConf   ResilienceConfig
}

// NewResilientClient dials cfg.Address, retrying transient dial failures.
func NewResilientClient(ctx context.Context, cfg SSHConfig, resConf ResilienceConfig) (*ResilientSSHClient, error) {
	clientConfig, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger := lg.FromContext(ctx).With(lg.String("remote", cfg.Address))

	var client *ssh.Client
	dial := func() error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", cfg.Address, clientConfig)
		var netErr net.Error
		if dialErr != nil && !errors.As(dialErr, &netErr) {
			// authentication and handshake errors will not heal on retry
			return backoff.Permanent(dialErr)
		}
		return dialErr
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("ssh dial failed, retrying", lg.Err(err), lg.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(dial, backoff.WithContext(resConf.BackoffSettings(), ctx), notify); err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Address, err)
	}
	logger.Info("ssh connection established")

	return &ResilientSSHClient{
		sshClient: client,
		cb:        gobreaker.NewCircuitBreaker(resConf.CircuitBreakerSettings),
		resConf:   resConf,
	}, nil
}

func (c *ResilientSSHClient) Close() error {
	return c.sshClient.Close()
}

func (c *ResilientSSHClient) openSession(ctx context.Context, out io.Writer) (remoteSession, error) {
	var sess *ssh.Session
	operation := func() error {
		res, err := c.cb.Execute(func() (any, error) {
			return c.sshClient.NewSession()
		})
		if errors.Is(err, gobreaker.ErrOpenState) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		sess = res.(*ssh.Session)
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(c.resConf.BackoffSettings(), ctx)); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	sess.Stdout = out
	sess.Stderr = out
	return sess, nil
}

func clientConfig(cfg SSHConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyPath != "" {
		keyAuth, err := publicKeyAuth(cfg.KeyPath)
		if err != nil {
			return nil, err
		}
		auth = append(auth, keyAuth)
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("ssh: either a password or a key path is required")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("unable to load known hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
		BannerCallback:  func(message string) error { return nil }, //ignore banner
	}, nil
}

func publicKeyAuth(privateKeyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}
