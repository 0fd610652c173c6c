// Package env exposes environment-derived configuration that needs to be
// read before a Client exists, such as build scripts and standalone tools
// that want to know which API origin a deploy will talk to.
package env

import (
	"net/url"
	"os"
)

// DevServerOrigin is the default address of a locally running dev server.
const DevServerOrigin = "http://127.0.0.1:8288"

const prodAPIOrigin = "https://api.inngest.com"

// APIServerURL returns the API origin the SDK would use given the current
// environment: the Dev Server's origin if INNGEST_DEV is set (using its
// value as the origin when it's a URL, DevServerOrigin otherwise), or the
// production API origin.
func APIServerURL() string {
	dev := os.Getenv("INNGEST_DEV")
	if dev == "" {
		return prodAPIOrigin
	}
	if u, err := url.Parse(dev); err == nil && u.Host != "" {
		return dev
	}
	return DevServerOrigin
}
