package mqtt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const clientIDFile = "mqtt_client_id"

// LoadOrCreateClientID returns the MQTT client ID persisted in dataDir,
// creating "aitokamak-<uuid>" on first use. A stable ID lets the broker
// resume the session across restarts.
func LoadOrCreateClientID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, clientIDFile)

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate client ID: %w", err)
	}
	id := "aitokamak-" + u.String()

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dataDir, err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("persist client ID to %s: %w", path, err)
	}
	return id, nil
}
