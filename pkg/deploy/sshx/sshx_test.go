package sshx

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestClient_Signer(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	t.Run("plain key", func(t *testing.T) {
		block, err := ssh.MarshalPrivateKey(priv, "")
		require.NoError(t, err)

		c := &Client{Key: pem.EncodeToMemory(block)}
		signer, err := c.signer()
		require.NoError(t, err)
		assert.Equal(t, "ssh-ed25519", signer.PublicKey().Type())
	})

	t.Run("passphrase-protected key", func(t *testing.T) {
		block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("hunter2"))
		require.NoError(t, err)

		c := &Client{Key: pem.EncodeToMemory(block), Passphrase: "hunter2"}
		signer, err := c.signer()
		require.NoError(t, err)
		assert.Equal(t, "ssh-ed25519", signer.PublicKey().Type())
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("hunter2"))
		require.NoError(t, err)

		c := &Client{Key: pem.EncodeToMemory(block), Passphrase: "nope"}
		_, err = c.signer()
		assert.Error(t, err)
	})

	t.Run("garbage key", func(t *testing.T) {
		c := &Client{Key: []byte("not a key")}
		_, err := c.signer()
		assert.Error(t, err)
	})
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "'/var/www/frontend'", quote("/var/www/frontend"))
	assert.Equal(t, `'it'\''s'`, quote("it's"))
}
