package archive

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
)

// IPFSStore talks to an IPFS HTTP API node such as a local kubo daemon or a
// pinning service.
type IPFSStore struct {
	sh *shell.Shell
}

// NewIPFSStore connects to apiURL. auth is either "user:secret", which is
// sent as basic auth, or a full Authorization header value.
func NewIPFSStore(apiURL, auth string, timeout time.Duration) *IPFSStore {
	client := &http.Client{
		Timeout:   timeout,
		Transport: &authTransport{header: authorizationHeader(auth), base: http.DefaultTransport},
	}
	return &IPFSStore{sh: shell.NewShellWithClient(apiURL, client)}
}

func (s *IPFSStore) Add(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cid, err := s.sh.Add(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("ipfs add: %w", err)
	}
	return cid, nil
}

func (s *IPFSStore) Cat(ctx context.Context, address string) ([]byte, error) {
	resp, err := s.sh.Request("cat", address).Send(ctx)
	if err != nil {
		return nil, fmt.Errorf("ipfs cat: %w", err)
	}
	defer resp.Close()
	if resp.Error != nil {
		if isIPFSNotFound(resp.Error) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, resp.Error.Message)
		}
		return nil, fmt.Errorf("ipfs cat: %w", resp.Error)
	}
	data, err := io.ReadAll(resp.Output)
	if err != nil {
		return nil, fmt.Errorf("ipfs cat: %w", err)
	}
	return data, nil
}

func (s *IPFSStore) Pin(ctx context.Context, address string) error {
	if err := s.sh.Request("pin/add", address).Exec(ctx, nil); err != nil {
		return fmt.Errorf("ipfs pin: %w", err)
	}
	return nil
}

func (s *IPFSStore) Ping(ctx context.Context) error {
	if err := s.sh.Request("version").Exec(ctx, nil); err != nil {
		return fmt.Errorf("ipfs version: %w", err)
	}
	return nil
}

func isIPFSNotFound(e *shell.Error) bool {
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "invalid path") || strings.Contains(msg, "invalid cid")
}

func authorizationHeader(auth string) string {
	switch {
	case auth == "":
		return ""
	case strings.HasPrefix(auth, "Basic ") || strings.HasPrefix(auth, "Bearer "):
		return auth
	default:
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(auth))
	}
}

type authTransport struct {
	header string
	base   http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.header == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", t.header)
	return t.base.RoundTrip(r)
}
