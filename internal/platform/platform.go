// Package platform holds the per-network configuration table: profile URL
// shapes and the ordered selector strategies the locator tries when hunting
// for the profile image. Adding a network means adding one entry here.
package platform

import (
	"fmt"
	"strings"

	"github.com/hellooo-cards/iconbridge/internal/common/cnst"
)

// Definition describes one supported social network.
type Definition struct {
	Name        cnst.Platform
	DisplayName string
	// BaseURL is the profile URL prefix, without trailing slash.
	BaseURL string
	// Selectors are tried in order on every poll tick; first match wins.
	Selectors []string
	// ClearStateBeforeFetch clears browser-local storage before a batch.
	// Observed for X only; kept as a per-platform quirk, not a rule.
	ClearStateBeforeFetch bool
}

var definitions = map[cnst.Platform]*Definition{
	cnst.PlatformX: {
		Name:        cnst.PlatformX,
		DisplayName: "X (Twitter)",
		BaseURL:     "https://x.com",
		Selectors: []string{
			`a[href$="/photo"] img`,
		},
		ClearStateBeforeFetch: true,
	},
	cnst.PlatformInstagram: {
		Name:        cnst.PlatformInstagram,
		DisplayName: "Instagram",
		BaseURL:     "https://instagram.com",
		// Instagram's header markup varies by locale and account type, so
		// the strategies run from most to least specific.
		Selectors: []string{
			`header a>img[alt*="profile"]`,
			`header a>img[alt*="プロフィール"]`,
			`header button>img[alt*="profile"]`,
			`header button>img[alt*="プロフィール"]`,
			`header button>img`,
			`header img[crossorigin="anonymous"]`,
		},
	},
}

// Get returns the definition for p, resolving an absent selector to the
// default platform.
func Get(p cnst.Platform) (*Definition, error) {
	def, ok := definitions[p.OrDefault()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cnst.ErrUnknownPlatform, p)
	}
	return def, nil
}

// ProfileURL builds the profile page URL for a normalized handle.
func (d *Definition) ProfileURL(handle string) string {
	return d.BaseURL + "/" + handle
}

// HandleFromPath extracts the account name from a profile page URL path.
// This is what the locator reports; it can differ from the requested handle
// when the site redirects.
func HandleFromPath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
