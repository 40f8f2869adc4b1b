// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package platform

import (
	"fmt"
	"net/netip"
	"net/url"
)

// metadataAddr is the cloud instance metadata endpoint.
var metadataAddr = netip.MustParseAddr("169.254.169.254")

// validateBaseURL rejects non-http(s) API endpoints and literal addresses in
// private or link-local ranges. Loopback is allowed for local development.
func validateBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %q: only http and https are allowed", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no hostname")
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// A host name; resolution happens at dial time.
		return nil
	}
	addr = addr.Unmap()
	if addr.IsLoopback() {
		return nil
	}
	if addr == metadataAddr || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
		return fmt.Errorf("refusing to connect to private or internal address %s", host)
	}
	return nil
}
