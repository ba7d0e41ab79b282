package remote

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// FindKeyPath returns the private key path to use for SSH.
// Priority: 1) configured path, 2) ~/.ssh/<project>.pem, 3) ~/.ssh/id_ed25519, 4) ~/.ssh/id_rsa
func FindKeyPath(configPath, project string) (string, error) {
	// If explicitly configured, use that
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		return "", fmt.Errorf("configured ssh key not found: %s", configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	candidates := []string{
		filepath.Join(homeDir, ".ssh", project+".pem"),
		filepath.Join(homeDir, ".ssh", "id_ed25519"),
		filepath.Join(homeDir, ".ssh", "id_rsa"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no ssh key found (tried: %s)", strings.Join(candidates, ", "))
}

// ValidateKeyPermissions checks that the private key is not readable by
// group or others, the same rule sshd applies
func ValidateKeyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat ssh key: %w", err)
	}

	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("ssh key %s has permissions %o, must be accessible by owner only (chmod 600)", path, mode)
	}

	return nil
}

// LoadSigner reads and parses a private key after checking its permissions
func LoadSigner(keyPath, passphrase string) (ssh.Signer, error) {
	if err := ValidateKeyPermissions(keyPath); err != nil {
		return nil, err
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh key: %w", err)
	}

	return signer, nil
}
