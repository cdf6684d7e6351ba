package core

import (
	"github.com/pushchain/svm-txkit/handle"
	"github.com/pushchain/svm-txkit/signer"
)

// Registry hands out opaque handles for keypairs and clients to callers that
// cannot hold Go pointers across a boundary.
type Registry struct {
	keypairs *handle.Table[*signer.Keypair]
	clients  *handle.Table[*Client]
}

func NewRegistry() *Registry {
	return &Registry{
		keypairs: handle.New[*signer.Keypair](),
		clients:  handle.New[*Client](),
	}
}

// GenerateKeypair creates a random keypair and returns its handle.
func (r *Registry) GenerateKeypair() (handle.Handle, error) {
	k, err := signer.Generate()
	if err != nil {
		return 0, err
	}
	return r.keypairs.Acquire(k), nil
}

// ImportKeypair registers a keypair from 64 bytes of secret material.
func (r *Registry) ImportKeypair(secret []byte) (handle.Handle, error) {
	k, err := signer.FromBytes(secret)
	if err != nil {
		return 0, err
	}
	return r.keypairs.Acquire(k), nil
}

func (r *Registry) Keypair(h handle.Handle) (*signer.Keypair, error) {
	return r.keypairs.Get(h)
}

// Signers resolves handles in order, failing on the first unknown one.
func (r *Registry) Signers(hs ...handle.Handle) ([]signer.Signer, error) {
	out := make([]signer.Signer, 0, len(hs))
	for _, h := range hs {
		k, err := r.keypairs.Get(h)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func (r *Registry) ReleaseKeypair(h handle.Handle) error {
	_, err := r.keypairs.Release(h)
	return err
}

// AddClient registers c. ReleaseClient closes it.
func (r *Registry) AddClient(c *Client) handle.Handle {
	return r.clients.Acquire(c)
}

func (r *Registry) Client(h handle.Handle) (*Client, error) {
	return r.clients.Get(h)
}

// ReleaseClient unregisters and closes the client behind h.
func (r *Registry) ReleaseClient(h handle.Handle) error {
	c, err := r.clients.Release(h)
	if err != nil {
		return err
	}
	return c.Close()
}
