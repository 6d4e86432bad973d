package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
)

// ErrSRVNotAllowed is returned when a srv:// reference is used for a value
// that is not an endpoint.
var ErrSRVNotAllowed = errors.New("srv:// references are only valid for base_url")

// ResolveValue expands indirect config values:
//   - op://vault/item/field    1Password secret via `op read`
//   - srv://record/path        DNS SRV lookup, returned as https://host:port/path
//   - $(command)               trimmed output of a shell command
//   - ${VAR} or $VAR           environment variable
//
// Anything else is returned as-is.
func ResolveValue(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}

	switch {
	case strings.HasPrefix(value, "op://"):
		return resolveOnePassword(value)
	case strings.HasPrefix(value, "srv://"):
		return resolveSRV(value)
	case strings.HasPrefix(value, "$(") && strings.HasSuffix(value, ")"):
		return resolveCommand(value[2 : len(value)-1])
	default:
		return expandEnv(value), nil
	}
}

// ResolveBaseURL resolves base_url and checks that it is an absolute http(s)
// endpoint. The trailing slash is dropped so paths can be appended. An empty
// result means "use the default".
func ResolveBaseURL(value string) (string, error) {
	resolved, err := ResolveValue(value)
	if err != nil || resolved == "" {
		return "", err
	}

	u, err := url.Parse(resolved)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", resolved, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%q is not an http(s) URL", resolved)
	}
	return strings.TrimSuffix(resolved, "/"), nil
}

// ResolveAPIKey resolves api_key. Keys are sent as a bearer token, so a pasted
// "Bearer " prefix is dropped. Endpoint references are rejected.
func ResolveAPIKey(value string) (string, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "srv://") {
		return "", ErrSRVNotAllowed
	}

	resolved, err := ResolveValue(value)
	if err != nil {
		return "", err
	}
	if len(resolved) > 7 && strings.EqualFold(resolved[:7], "bearer ") {
		resolved = strings.TrimSpace(resolved[7:])
	}
	return resolved, nil
}

// expandEnv expands a value that is entirely ${VAR} or $VAR.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") && !strings.ContainsAny(s[1:], " /:") {
		return os.Getenv(s[1:])
	}
	return s
}

// resolveOnePassword reads op://vault/item/field[?account=...].
func resolveOnePassword(opURL string) (string, error) {
	u, err := url.Parse(opURL)
	if err != nil {
		return "", fmt.Errorf("1password: invalid URL %s: %w", opURL, err)
	}

	ref := fmt.Sprintf("op://%s%s", u.Host, u.Path)
	args := []string{"read", ref}
	if account := u.Query().Get("account"); account != "" {
		args = append(args, "--account", account)
	}

	output, err := exec.Command("op", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("1password: read %s: %s", ref, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("1password: read %s: %w (is the op CLI installed?)", ref, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// resolveSRV turns srv://_service._proto.domain/path into https://host:port/path,
// which lets base_url point at a self-hosted OpenRouter-compatible gateway.
func resolveSRV(srvURL string) (string, error) {
	u, err := url.Parse(srvURL)
	if err != nil {
		return "", fmt.Errorf("invalid srv:// URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("srv:// URL missing host: %s", srvURL)
	}

	_, addrs, err := net.LookupSRV("", "", u.Host)
	if err != nil {
		return "", fmt.Errorf("SRV lookup for %s: %w", u.Host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no SRV records for %s", u.Host)
	}

	// Sorted by priority and weight already.
	addr := addrs[0]
	host := strings.TrimSuffix(addr.Target, ".")
	return fmt.Sprintf("https://%s:%d%s", host, addr.Port, u.Path), nil
}

func resolveCommand(cmd string) (string, error) {
	output, err := exec.Command("sh", "-c", cmd).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("command %q failed: %s", cmd, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("command %q failed: %w", cmd, err)
	}
	return strings.TrimSpace(string(output)), nil
}
