package sshx

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/james-lawrence/tpm/internal/systemx"
)

func home(names ...string) string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(append([]string{dir, ".ssh"}, names...)...)
}

// DefaultIdentities the private keys present in the user's ssh directory.
func DefaultIdentities() (paths []string) {
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		if path := home(name); path != "" && systemx.FileExists(path) {
			paths = append(paths, path)
		}
	}

	return paths
}

// DefaultKnownHosts the user's known_hosts file.
func DefaultKnownHosts() []string {
	return []string{home("known_hosts")}
}

// Signer loads the pem encoded private key at the path.
func Signer(path string) (ssh.Signer, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s, err := ssh.ParsePrivateKey(encoded)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse private key %s", path)
	}

	return s, nil
}

// Agent connects to the ssh agent listening on the socket.
// returns nil when no socket is provided.
func Agent(socket string) (agent.ExtendedAgent, error) {
	if socket == "" {
		return nil, nil
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to ssh agent %s", socket)
	}

	return agent.NewClient(conn), nil
}

// Generate a RSA private key with the given bits size, returns the pem encoded bytes.
func Generate(bits int) (encoded []byte, err error) {
	var (
		pkey *rsa.PrivateKey
	)

	if pkey, err = rsa.GenerateKey(rand.Reader, bits); err != nil {
		return encoded, err
	}

	if err = pkey.Validate(); err != nil {
		return encoded, err
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(pkey),
	}), nil
}

// PublicKey returns a public key from the pem encoded private key.
func PublicKey(pemkey []byte) (pub []byte, err error) {
	var (
		pkey   *rsa.PrivateKey
		pubkey ssh.PublicKey
	)

	blk, _ := pem.Decode(pemkey) // assumes a single valid pem encoded key.
	if blk == nil {
		return pub, errors.New("ssh: no key found")
	}

	if pkey, err = x509.ParsePKCS1PrivateKey(blk.Bytes); err != nil {
		return pub, err
	}

	if pubkey, err = ssh.NewPublicKey(&pkey.PublicKey); err != nil {
		return pub, err
	}

	return ssh.MarshalAuthorizedKey(pubkey), nil
}

// IsNoKeyFound check if ssh key is not found.
func IsNoKeyFound(err error) bool {
	return err != nil && err.Error() == "ssh: no key found"
}
