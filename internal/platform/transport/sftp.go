// Package transport implements the file exchange against the ASP gateway,
// over SFTP in production and over a local directory in development.
package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/gip-inclusion/employee-records/internal/platform/config"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPTransport exchanges files with the remote gateway. The upload and
// feedback directories are fixed by the gateway contract.
type SFTPTransport struct {
	client      *sftp.Client
	conn        *ssh.Client
	uploadDir   string
	feedbackDir string
}

// DialSFTP opens the SSH connection and the SFTP subsystem.
func DialSFTP(cfg config.TransferConfig) (*SFTPTransport, error) {
	s := cfg.SFTP

	auth, err := authMethods(s.Password, s.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if s.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(s.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("transport: load known hosts: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	conn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            s.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("transport: open sftp subsystem: %w", err)
	}

	return &SFTPTransport{
		client:      client,
		conn:        conn,
		uploadDir:   cfg.UploadDir,
		feedbackDir: cfg.FeedbackDir,
	}, nil
}

func authMethods(password, keyPath string) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if keyPath != "" {
		raw, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("transport: read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("transport: parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if password != "" {
		methods = append(methods, ssh.Password(password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("transport: no authentication method configured")
	}
	return methods, nil
}

// Upload writes payload under filename in the remote upload directory.
func (t *SFTPTransport) Upload(ctx context.Context, filename string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	remote := path.Join(t.uploadDir, filename)
	f, err := t.client.Create(remote)
	if err != nil {
		return fmt.Errorf("transport: create %s: %w", remote, err)
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return fmt.Errorf("transport: write %s: %w", remote, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("transport: close %s: %w", remote, err)
	}
	return nil
}

// ListFeedback names the files waiting in the remote feedback directory.
func (t *SFTPTransport) ListFeedback(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := t.client.ReadDir(t.feedbackDir)
	if err != nil {
		return nil, fmt.Errorf("transport: read %s: %w", t.feedbackDir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// DownloadFeedback reads one feedback file.
func (t *SFTPTransport) DownloadFeedback(ctx context.Context, filename string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remote := path.Join(t.feedbackDir, filename)
	f, err := t.client.Open(remote)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", remote, err)
	}
	defer f.Close()

	payload, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("transport: read %s: %w", remote, err)
	}
	return payload, nil
}

// DeleteFeedback removes a fully processed feedback file.
func (t *SFTPTransport) DeleteFeedback(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	remote := path.Join(t.feedbackDir, filename)
	if err := t.client.Remove(remote); err != nil {
		return fmt.Errorf("transport: remove %s: %w", remote, err)
	}
	return nil
}

// Check verifies both remote directories are reachable.
func (t *SFTPTransport) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, dir := range []string{t.uploadDir, t.feedbackDir} {
		if _, err := t.client.Stat(dir); err != nil {
			return fmt.Errorf("transport: stat %s: %w", dir, err)
		}
	}
	return nil
}

// Close shuts the SFTP session and the SSH connection down.
func (t *SFTPTransport) Close() error {
	sftpErr := t.client.Close()
	sshErr := t.conn.Close()
	if sftpErr != nil {
		return sftpErr
	}
	return sshErr
}
