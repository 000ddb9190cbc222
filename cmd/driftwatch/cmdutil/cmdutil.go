package cmdutil

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"driftwatch/config"
	"driftwatch/pkg/sdk/client"
)

// Flags are the root persistent flags every remote command reads.
type Flags struct {
	Server  string
	Context string
	JSON    bool
}

// ResolveServer picks the daemon URL. Resolution order:
//
//  1. --server / DRIFTWATCH_SERVER
//  2. --context / DRIFTWATCH_CONTEXT
//  3. current-context from the contexts file
//  4. config.DefaultServer
func ResolveServer(f Flags) (string, error) {
	if server := firstNonEmpty(f.Server, os.Getenv("DRIFTWATCH_SERVER")); server != "" {
		return server, nil
	}

	contexts, err := config.LoadContexts()
	if err != nil {
		return "", fmt.Errorf("load contexts: %w", err)
	}
	return contexts.Server(firstNonEmpty(f.Context, os.Getenv("DRIFTWATCH_CONTEXT")))
}

func Connect(f Flags) (*client.Client, error) {
	server, err := ResolveServer(f)
	if err != nil {
		return nil, err
	}
	return client.New(server)
}

// PrintJSON writes v as indented JSON to stdout.
func PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
