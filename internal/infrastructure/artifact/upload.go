package artifact

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Location is a parsed user@host:/path upload destination.
type Location struct {
	User string
	Host string
	Port int
	Path string
}

// Addr returns the host:port dial address of the location.
func (l Location) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

// ParseLocation parses a user@host:/path destination. The port
// defaults to 22.
func ParseLocation(s string) (Location, error) {
	at := strings.Index(s, "@")
	colon := strings.Index(s, ":")
	if at <= 0 || colon <= at+1 || colon == len(s)-1 {
		return Location{}, fmt.Errorf("invalid upload location '%s': expected user@host:/path", s)
	}
	return Location{
		User: s[:at],
		Host: s[at+1 : colon],
		Port: 22,
		Path: s[colon+1:],
	}, nil
}

// Uploader pushes staged release files to an upload location.
type Uploader interface {
	Upload(ctx context.Context, location string, paths []string) error
}

// SFTPUploader implements Uploader over SSH, authenticating through
// the operator's ssh-agent.
type SFTPUploader struct {
	auth []ssh.AuthMethod
}

// UploaderOption configures an SFTPUploader.
type UploaderOption func(*SFTPUploader)

// WithAuthMethods overrides the SSH authentication methods.
func WithAuthMethods(methods ...ssh.AuthMethod) UploaderOption {
	return func(u *SFTPUploader) {
		u.auth = methods
	}
}

// NewSFTPUploader creates an uploader using ssh-agent authentication.
func NewSFTPUploader(opts ...UploaderOption) *SFTPUploader {
	u := &SFTPUploader{}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload copies every path to the location directory over SFTP.
func (u *SFTPUploader) Upload(ctx context.Context, location string, paths []string) error {
	loc, err := ParseLocation(location)
	if err != nil {
		return err
	}

	auth := u.auth
	if auth == nil {
		auth, err = agentAuth()
		if err != nil {
			return err
		}
	}

	config := &ssh.ClientConfig{
		User:            loc.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}

	sshClient, err := ssh.Dial("tcp", loc.Addr(), config)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", loc.Addr(), err)
	}
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("SFTP connection failed: %w", err)
	}
	defer sftpClient.Close()

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := uploadFile(sftpClient, p, loc.Path); err != nil {
			return err
		}
	}
	return nil
}

func uploadFile(client *sftp.Client, local, remoteDir string) error {
	src, err := os.Open(local)
	if err != nil {
		return err
	}
	defer src.Close()

	remote := path.Join(remoteDir, filepath.Base(local))
	dst, err := client.Create(remote)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remote, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to upload %s: %w", local, err)
	}
	return dst.Close()
}

func agentAuth() ([]ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("no ssh-agent available (SSH_AUTH_SOCK is not set)")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ssh-agent: %w", err)
	}
	return []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(conn).Signers)}, nil
}
