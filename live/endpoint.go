package live

import (
	"fmt"
	"net/url"
	"strings"

	lerrors "github.com/AltairaLabs/geminilive/errors"
)

// Endpoint schemes.
const (
	SchemeSecure   = "wss"
	SchemeInsecure = "ws"
)

const servicePath = "/ws/google.ai.generativelanguage.%s.GenerativeService.BidiGenerateContent"

// BuildEndpoint returns the bidirectional streaming URL for host and API
// version, carrying credential as the key query parameter. An empty scheme
// means wss.
func BuildEndpoint(scheme, host, version, credential string) (string, error) {
	if scheme == "" {
		scheme = SchemeSecure
	}
	if scheme != SchemeSecure && scheme != SchemeInsecure {
		return "", invalidEndpoint(fmt.Errorf("unsupported scheme %q", scheme))
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", invalidEndpoint(fmt.Errorf("host is empty"))
	}
	if strings.ContainsAny(host, "/?#@ ") {
		return "", invalidEndpoint(fmt.Errorf("host %q is not a bare host", host))
	}
	if strings.TrimSpace(credential) == "" {
		return "", invalidEndpoint(fmt.Errorf("credential is empty"))
	}
	if version == "" {
		version = DefaultAPIVersion
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     fmt.Sprintf(servicePath, version),
		RawQuery: url.Values{"key": []string{credential}}.Encode(),
	}
	if _, err := url.Parse(u.String()); err != nil {
		return "", invalidEndpoint(err)
	}
	return u.String(), nil
}

func invalidEndpoint(cause error) error {
	return lerrors.Wrap(lerrors.ErrInvalidEndpoint, component, "BuildEndpoint", cause)
}
