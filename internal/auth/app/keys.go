package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quollsec/authgate/pkg/cryptox"
)

// loadOrCreateSessionKey reads the Ed25519 session signing key from path,
// minting and persisting one on first boot.
func loadOrCreateSessionKey(path string) ([]byte, error) {
	path = filepath.Clean(path)

	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read session key: %w", err)
	}

	key, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("write session key: %w", err)
	}
	return key, nil
}
