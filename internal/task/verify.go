package task

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

var remoteHeadFunc = remote.Head

func transport(insecure bool) http.RoundTripper {
	d := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if insecure {
		tlsCfg.InsecureSkipVerify = true
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           d.DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       tlsCfg,
	}
}

// verifyPushedDigest confirms the manifest landed at the target by asking
// the registry for its digest.
func verifyPushedDigest(ctx context.Context, ref name.Reference, username, password string, insecure bool) (string, error) {
	auth := &authn.Basic{Username: username, Password: password}
	desc, err := remoteHeadFunc(
		ref,
		remote.WithAuth(auth),
		remote.WithContext(ctx),
		remote.WithTransport(transport(insecure)),
	)
	if err != nil {
		return "", err
	}
	return desc.Digest.String(), nil
}
