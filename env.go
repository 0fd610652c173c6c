package inngestgo

import (
	"net/url"
	"os"
	"strings"

	"github.com/inngest/inngestgo/internal/platform"
)

const (
	devServerURL = "http://127.0.0.1:8288"
)

// IsDev returns whether to use the dev server, by checking the presence of
// the INNGEST_DEV environment variable.
//
// To use the dev server, set INNGEST_DEV to any non-empty value OR the URL
// of the development server, eg:
//
//	INNGEST_DEV=1
//	INNGEST_DEV=http://192.168.1.254:8288
func IsDev() bool {
	return os.Getenv("INNGEST_DEV") != ""
}

// DevServerURL returns the URL for the Inngest dev server. This uses the
// INNGEST_DEV environment variable if it's a URL, then INNGEST_DEVSERVER_URL,
// defaulting to 'http://127.0.0.1:8288' if unset.
func DevServerURL() string {
	if dev := os.Getenv("INNGEST_DEV"); dev != "" {
		if u, err := url.Parse(dev); err == nil && u.Host != "" {
			return dev
		}
	}
	if u := os.Getenv("INNGEST_DEVSERVER_URL"); u != "" {
		return u
	}
	return devServerURL
}

// baseURL returns the orchestrator's API base, honoring
// INNGEST_BASE_URL/INNGEST_API_BASE_URL overrides before falling back to
// the production default.
func baseURL() string {
	if u := os.Getenv("INNGEST_API_BASE_URL"); u != "" {
		return u
	}
	if u := os.Getenv("INNGEST_BASE_URL"); u != "" {
		return u
	}
	return defaultAPIOrigin
}

// eventAPIBaseURL returns the base URL used for sending events.
func eventAPIBaseURL() string {
	if u := os.Getenv("INNGEST_EVENT_API_BASE_URL"); u != "" {
		return u
	}
	return defaultEventAPIOrigin
}

// serveOrigin returns an explicit INNGEST_SERVE_ORIGIN override, if any.
func serveOrigin() string {
	return os.Getenv("INNGEST_SERVE_ORIGIN")
}

// servePath returns an explicit INNGEST_SERVE_PATH override, if any.
func servePath() string {
	return os.Getenv("INNGEST_SERVE_PATH")
}

// branchEnv returns the preview/branch environment name, preferring
// INNGEST_ENV and falling back to the deprecated INNGEST_BRANCH.
func branchEnv() string {
	if v := os.Getenv("INNGEST_ENV"); v != "" {
		return v
	}
	return os.Getenv("INNGEST_BRANCH")
}

func allowInBandSync() bool {
	val := os.Getenv("INNGEST_ALLOW_IN_BAND_SYNC")
	if val == "" {
		// TODO: default to true once in-band syncing is stable.
		return false
	}
	return isTruthy(val)
}

// detectPlatform returns the auto-detected hosting platform name, used for
// the X-Inngest-Platform header.
func detectPlatform() string {
	return platform.Detect()
}

func isTruthy(val string) bool {
	val = strings.ToLower(val)
	if val == "false" || val == "0" || val == "" {
		return false
	}
	return true
}
