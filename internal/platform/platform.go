// Package platform auto-detects the hosting platform a handler is running
// on, from well-known environment variables each platform's build/runtime
// sets, feeding the X-Inngest-Platform header.
package platform

import "os"

// Detect returns the name of the hosting platform the process is running
// on, or "" if none of the known platforms are detected.
func Detect() string {
	switch {
	case os.Getenv("VERCEL") != "":
		return "vercel"
	case os.Getenv("NETLIFY") != "":
		return "netlify"
	case os.Getenv("CF_PAGES") != "":
		return "cloudflare-pages"
	case os.Getenv("RENDER") != "":
		return "render"
	case os.Getenv("RAILWAY_ENVIRONMENT") != "":
		return "railway"
	default:
		return ""
	}
}
