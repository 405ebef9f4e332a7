package platform

import "fmt"

// Platform ids.
const (
	ProductHunt  = "producthunt"
	HackerNews   = "hackernews"
	Reddit       = "reddit"
	IndieHackers = "indiehackers"
)

// Info describes a platform in the catalog.
type Info struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	RequiredCredentials []string `json:"requiredCredentials"`
	LaunchTips          []string `json:"launchTips"`
}

// Catalog lists every platform LaunchPal knows, in display order. Only some
// have a registered adapter.
var Catalog = []Info{
	{
		ID:                  ProductHunt,
		Name:                "Product Hunt",
		Description:         "Launch tech products to early adopters",
		RequiredCredentials: []string{"clientId", "clientSecret"},
		LaunchTips: []string{
			"Launch on Tuesday at 12:01 AM PST",
			"Prepare high-quality gallery images (1270x760px)",
			"Engage with comments in first 2 hours",
		},
	},
	{
		ID:                  HackerNews,
		Name:                "Hacker News",
		Description:         "Share with the tech community",
		RequiredCredentials: []string{"username", "password"},
		LaunchTips: []string{
			"Post between 7-9 AM PST on weekdays",
			"Use Show HN format for new products",
			"Focus on technical innovation",
		},
	},
	{
		ID:                  Reddit,
		Name:                "Reddit",
		Description:         "Launch on relevant subreddits",
		RequiredCredentials: []string{"clientId", "clientSecret", "username", "password"},
		LaunchTips: []string{
			"Read subreddit rules first",
			"Engage authentically with community",
			"Avoid overly promotional language",
		},
	},
	{
		ID:                  IndieHackers,
		Name:                "Indie Hackers",
		Description:         "Connect with indie makers",
		RequiredCredentials: []string{"apiKey"},
		LaunchTips: []string{
			"Share your building journey",
			"Be transparent about metrics",
			"Help others in the community",
		},
	},
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Info, bool) {
	for _, p := range Catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Info{}, false
}

// IsKnown reports whether id is in the catalog.
func IsKnown(id string) bool {
	_, ok := Lookup(id)
	return ok
}

// RequireKeys checks that creds has a non-empty value for every key.
func RequireKeys(creds Credentials, keys ...string) error {
	for _, k := range keys {
		if creds[k] == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidCredentials, k)
		}
	}
	return nil
}
