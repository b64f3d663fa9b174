package reference

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed domains.yaml
var defaultDomainsYAML []byte

// Domains holds the authority allowlist and the blacklist.
type Domains struct {
	AuthoritySuffixes []string `yaml:"authority_suffixes"`
	AuthorityDomains  []string `yaml:"authority_domains"`
	Blacklist         []string `yaml:"blacklist"`
}

// DefaultDomains returns the embedded domain lists.
func DefaultDomains() *Domains {
	d, err := ParseDomains(defaultDomainsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded domains.yaml: %v", err))
	}
	return d
}

// LoadDomains reads domain lists from a YAML file. An empty path returns the
// embedded defaults.
func LoadDomains(path string) (*Domains, error) {
	if path == "" {
		return DefaultDomains(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domains file: %w", err)
	}
	return ParseDomains(data)
}

// ParseDomains decodes domain lists from YAML.
func ParseDomains(data []byte) (*Domains, error) {
	var d Domains
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse domains: %w", err)
	}
	d.AuthoritySuffixes = normalizeList(d.AuthoritySuffixes)
	d.AuthorityDomains = normalizeList(d.AuthorityDomains)
	d.Blacklist = normalizeList(d.Blacklist)
	for i, s := range d.AuthoritySuffixes {
		if !strings.HasPrefix(s, ".") {
			d.AuthoritySuffixes[i] = "." + s
		}
	}
	return &d, nil
}

// IsAuthority reports whether host is a curated authority domain.
func (d *Domains) IsAuthority(host string) bool {
	host = strings.ToLower(host)
	for _, s := range d.AuthoritySuffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return matchesAny(host, d.AuthorityDomains)
}

// IsBlacklisted reports whether host is a low-authority, social or aggregator domain.
func (d *Domains) IsBlacklisted(host string) bool {
	return matchesAny(strings.ToLower(host), d.Blacklist)
}

// matchesAny reports whether host equals one of domains or is a subdomain of it.
func matchesAny(host string, domains []string) bool {
	for _, domain := range domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.TrimPrefix(s, "www.")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
