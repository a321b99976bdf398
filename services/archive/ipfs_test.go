package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIPFSNode struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	pinned map[string]bool
	auth   []string
}

func (n *fakeIPFSNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	n.auth = append(n.auth, r.Header.Get("Authorization"))
	n.mu.Unlock()

	switch r.URL.Path {
	case "/api/v0/add":
		mr, err := r.MultipartReader()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		part, err := mr.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(part)
		sum := sha256.Sum256(data)
		cid := "bafk" + hex.EncodeToString(sum[:12])
		n.mu.Lock()
		n.blobs[cid] = data
		n.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"Name": cid, "Hash": cid, "Size": "0"})
	case "/api/v0/cat":
		n.mu.Lock()
		data, ok := n.blobs[r.URL.Query().Get("arg")]
		n.mu.Unlock()
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"Message":"block was not found locally (offline): ipld: could not find node","Code":0,"Type":"error"}`)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(data)
	case "/api/v0/pin/add":
		n.mu.Lock()
		n.pinned[r.URL.Query().Get("arg")] = true
		n.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"Pins":["`+r.URL.Query().Get("arg")+`"]}`)
	case "/api/v0/version":
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"Version":"0.30.0"}`)
	default:
		http.NotFound(w, r)
	}
}

func TestIPFSStoreAgainstHTTPAPI(t *testing.T) {
	node := &fakeIPFSNode{blobs: map[string][]byte{}, pinned: map[string]bool{}}
	srv := httptest.NewServer(node)
	defer srv.Close()

	s := NewIPFSStore(srv.URL, "project:secret", 2*time.Second)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	addr, err := s.Add(ctx, []byte(`{"id":"B1"}`))
	require.NoError(t, err)
	require.NoError(t, s.Pin(ctx, addr))
	assert.True(t, node.pinned[addr])

	data, err := s.Cat(ctx, addr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"B1"}`, string(data))

	_, err = s.Cat(ctx, "bafkmissing")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	for _, h := range node.auth {
		assert.Equal(t, "Basic cHJvamVjdDpzZWNyZXQ=", h)
	}
}

func TestAuthorizationHeader(t *testing.T) {
	assert.Equal(t, "", authorizationHeader(""))
	assert.Equal(t, "Bearer abc", authorizationHeader("Bearer abc"))
	assert.Equal(t, "Basic dTpw", authorizationHeader("u:p"))
}
