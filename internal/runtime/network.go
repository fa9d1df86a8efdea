package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	NetworkHost   = "host"
	NetworkBridge = "bridge"

	// HostGatewayAlias resolves to the host from inside a container.
	HostGatewayAlias = "host.docker.internal"

	fallbackHostname = "localhost"
	fallbackBaseURL  = "http://127.0.0.1"
)

// NetworkConfig is the resolved network mode of a new container.
type NetworkConfig struct {
	Mode       string
	ExtraHosts []string
}

// NetworkDetector reports the engine's component names.
type NetworkDetector interface {
	ServerComponents(ctx context.Context) ([]string, error)
}

// ResolveNetwork picks host mode when configured and bridge mode otherwise.
// In bridge mode the host gateway alias is registered unless the engine is
// Docker Desktop, which resolves it natively. Detection failures are logged.
func ResolveNetwork(ctx context.Context, d NetworkDetector, useHostNetwork bool, log *logrus.Entry) NetworkConfig {
	if useHostNetwork {
		return NetworkConfig{Mode: NetworkHost}
	}

	withAlias := NetworkConfig{
		Mode:       NetworkBridge,
		ExtraHosts: []string{HostGatewayAlias + ":host-gateway"},
	}

	components, err := d.ServerComponents(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to detect Docker environment, using default bridge network")
		return withAlias
	}
	if isDockerDesktop(components) {
		return NetworkConfig{Mode: NetworkBridge}
	}
	return withAlias
}

func isDockerDesktop(components []string) bool {
	for _, name := range components {
		if strings.Contains(strings.ToLower(name), "docker-desktop") {
			return true
		}
	}
	return false
}

// hostnameByOS selects the control endpoint hostname per host platform.
// Platforms not listed derive it from the base URL.
var hostnameByOS = map[string]func(baseURL string) (string, error){
	"windows": func(string) (string, error) { return HostGatewayAlias, nil },
}

// Hostname returns the hostname the control endpoint is reached at on goos,
// falling back to localhost when it cannot be determined.
func Hostname(goos, baseURL string) string {
	resolve, ok := hostnameByOS[goos]
	if !ok {
		resolve = hostFromURL
	}
	host, err := resolve(baseURL)
	if err != nil || host == "" {
		return fallbackHostname
	}
	return host
}

func hostFromURL(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("empty base URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

// GatewayOverride returns the control URL to use when the container has no
// address of its own and the host alias did not resolve from inside it.
// ok is false when the current URL should be kept.
func GatewayOverride(ipAddress, gateway string, resolvable bool, port int) (u string, ok bool) {
	if ipAddress != "" || resolvable || gateway == "" {
		return "", false
	}
	return fmt.Sprintf("http://%s:%d", gateway, port), true
}

// GatewayLookup returns the default bridge network gateway.
type GatewayLookup interface {
	BridgeGateway(ctx context.Context) (string, error)
}

// DefaultBaseURL picks the scheme and host the control port is appended to
// when none is configured: the Docker Desktop alias on Windows, otherwise the
// bridge gateway, otherwise loopback.
func DefaultBaseURL(ctx context.Context, g GatewayLookup, goos string) string {
	if goos == "windows" {
		return "http://" + HostGatewayAlias
	}
	gw, err := g.BridgeGateway(ctx)
	if err != nil || gw == "" {
		return fallbackBaseURL
	}
	return "http://" + gw
}
