package fetcher

import (
	"fmt"
	"net/url"
)

// DirectTier is the name of the tier that requests the target URL itself.
const DirectTier = "direct"

// Tier is one network path to a target URL.
type Tier struct {
	// Name labels the tier in logs, metrics and Response.Tier
	Name string

	// Template is a relay URL with one %s for the escaped target. Empty means direct.
	Template string
}

// RequestURL returns the URL to request for target through this tier.
func (t Tier) RequestURL(target string) string {
	if t.Template == "" {
		return target
	}
	return fmt.Sprintf(t.Template, url.QueryEscape(target))
}

// buildTiers returns the direct tier followed by one tier per proxy template.
// Proxy tiers are named after the relay host.
func buildTiers(templates []string) []Tier {
	tiers := make([]Tier, 0, len(templates)+1)
	tiers = append(tiers, Tier{Name: DirectTier})
	for _, tpl := range templates {
		name := tpl
		if u, err := url.Parse(fmt.Sprintf(tpl, "")); err == nil && u.Host != "" {
			name = u.Host
		}
		tiers = append(tiers, Tier{Name: name, Template: tpl})
	}
	return tiers
}
