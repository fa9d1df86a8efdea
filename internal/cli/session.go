package cli

import (
	"errors"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/rickgorman/sandboxrt/internal/config"
	"github.com/rickgorman/sandboxrt/pkg/hash"
)

// resolveSessionID picks the session id for up: an explicit id, a fresh
// random one, or a stable hash of the working directory.
func resolveSessionID(session string, fresh bool, getwd func() (string, error)) (string, error) {
	switch {
	case session != "" && fresh:
		return "", errors.New("--session and --new cannot be used together")
	case session != "":
		return session, nil
	case fresh:
		return uuid.NewString(), nil
	}

	dir, err := getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	return hash.PathHash(dir), nil
}

// collectEnv merges env files in order, then KEY=VALUE pairs on top.
func collectEnv(files, pairs []string) (map[string]string, error) {
	env := make(map[string]string)

	for _, path := range files {
		fileEnv, err := config.LoadEnvFile(path)
		if err != nil {
			return nil, err
		}
		maps.Copy(env, fileEnv)
	}

	pairEnv, err := config.ParseEnvPairs(pairs)
	if err != nil {
		return nil, err
	}
	maps.Copy(env, pairEnv)

	return env, nil
}
