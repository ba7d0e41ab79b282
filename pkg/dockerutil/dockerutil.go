package dockerutil

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
)

// Resources created by this tool carry the managed-by label so they can be
// told apart from ones the exercises create by hand.
const (
	ManagedByLabel = "managed-by"
	ManagedByValue = "web_deployer"
)

// Labels returns the label set applied to every created resource
func Labels() map[string]string {
	return map[string]string{ManagedByLabel: ManagedByValue}
}

// New creates a Docker client from the environment and verifies the daemon
// is reachable
func New(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon is not reachable: %w", err)
	}

	return cli, nil
}

// RegistryAuth encodes credentials the way the Docker Engine API expects
// them in the X-Registry-Auth header
func RegistryAuth(username, password, serverAddress string) (string, error) {
	auth := registry.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: serverAddress,
	}

	data, err := json.Marshal(auth)
	if err != nil {
		return "", fmt.Errorf("failed to encode registry auth: %w", err)
	}

	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeStream consumes a build or push JSON stream, logging progress lines
// and surfacing the error the daemon embeds in the stream on failure
func DecodeStream(r io.Reader, logger zerolog.Logger) error {
	type jsonMessage struct {
		Stream string `json:"stream"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}

	dec := json.NewDecoder(r)
	for {
		var msg jsonMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode docker stream: %w", err)
		}

		if msg.Error != "" {
			return fmt.Errorf("docker reported: %s", msg.Error)
		}

		if line := strings.TrimSpace(msg.Stream); line != "" {
			logger.Debug().Msg(line)
		} else if msg.Status != "" {
			logger.Debug().Msg(msg.Status)
		}
	}
}
