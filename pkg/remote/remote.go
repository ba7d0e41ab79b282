package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Options configures a connection to a provisioned host
type Options struct {
	Host          string
	Port          int    // default: 22
	User          string // default: ec2-user
	Password      string
	KeyPath       string
	KeyPassphrase string
	Timeout       time.Duration // dial timeout, default: 30s
}

// Client wraps an SSH connection plus an SFTP session for file pushes
type Client struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	logger     zerolog.Logger
}

// Dial connects to the host. Host keys are not verified: the instances this
// talks to were created moments ago and their keys cannot be known in advance.
func Dial(opts Options, logger zerolog.Logger) (*Client, error) {
	if opts.Port == 0 {
		opts.Port = 22
	}
	if opts.User == "" {
		opts.User = "ec2-user"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	clientConfig := &ssh.ClientConfig{
		User:            opts.User,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         opts.Timeout,
	}

	if opts.Password != "" {
		clientConfig.Auth = append(clientConfig.Auth, ssh.Password(opts.Password))
	}

	if opts.KeyPath != "" {
		signer, err := LoadSigner(opts.KeyPath, opts.KeyPassphrase)
		if err != nil {
			return nil, err
		}
		clientConfig.Auth = append(clientConfig.Auth, ssh.PublicKeys(signer))
	}

	if len(clientConfig.Auth) == 0 {
		return nil, fmt.Errorf("no ssh authentication method configured")
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	sshClient, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("failed to start sftp session: %w", err)
	}

	return &Client{
		sshClient:  sshClient,
		sftpClient: sftpClient,
		logger:     logger,
	}, nil
}

// WaitReady dials in a loop until the host accepts a connection or the
// context expires. A fresh EC2 instance takes a while to start sshd.
func WaitReady(ctx context.Context, opts Options, interval time.Duration, logger zerolog.Logger) (*Client, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		client, err := Dial(opts, logger)
		if err == nil {
			return client, nil
		}

		logger.Debug().Err(err).Str("host", opts.Host).Msg("host not ready yet")

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, fmt.Errorf("host %s did not become reachable: %w", opts.Host, ctx.Err())
		}
	}
}

// Run executes a command and returns its combined output. The session is
// torn down if ctx is cancelled mid-command.
func (c *Client) Run(ctx context.Context, command string) (string, error) {
	session, err := c.sshClient.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer session.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()

	c.logger.Debug().Str("command", command).Msg("running remote command")

	output, err := session.CombinedOutput(command)
	if err != nil {
		if ctx.Err() != nil {
			return string(output), ctx.Err()
		}
		return string(output), fmt.Errorf("remote command failed: %w", err)
	}

	return string(output), nil
}

// Push uploads a local file via SFTP, creating remote directories as needed
func (c *Client) Push(ctx context.Context, localPath, remotePath string) error {
	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer local.Close()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := c.sftpClient.MkdirAll(dir); err != nil {
			return fmt.Errorf("failed to create remote directory %s: %w", dir, err)
		}
	}

	remote, err := c.sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	defer remote.Close()

	if _, err := io.Copy(remote, local); err != nil {
		return fmt.Errorf("failed to upload %s: %w", remotePath, err)
	}

	return nil
}

// Close releases the SFTP and SSH sessions
func (c *Client) Close() error {
	if c.sftpClient != nil {
		c.sftpClient.Close()
	}
	if c.sshClient != nil {
		c.sshClient.Close()
	}
	return nil
}
