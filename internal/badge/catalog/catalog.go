// Package catalog is the badge metadata registry: an immutable mapping from
// skill cluster to the asset minted for it.
package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"skillbadge/internal/badge/contentaddr"
	"skillbadge/internal/badge/models"
)

// ErrUnknownCluster is returned by Lookup for clusters outside the catalog.
var ErrUnknownCluster = errors.New("unknown cluster")

// Catalog is safe for concurrent reads; it is never mutated after New.
type Catalog struct {
	entries map[string]models.BadgeMetadata
}

// New validates entries and builds a catalog. Every entry needs a cluster, a
// skill name, and a content URI that is either ipfs://<cid> or http(s).
func New(entries []models.BadgeMetadata) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]models.BadgeMetadata, len(entries))}
	for _, e := range entries {
		e.Cluster = strings.TrimSpace(e.Cluster)
		e.SkillName = strings.TrimSpace(e.SkillName)
		if e.Cluster == "" {
			return nil, fmt.Errorf("catalog entry missing cluster")
		}
		if e.SkillName == "" {
			return nil, fmt.Errorf("catalog entry %q missing skill name", e.Cluster)
		}
		if err := validateURI(e.ContentURI); err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", e.Cluster, err)
		}
		if _, dup := c.entries[e.Cluster]; dup {
			return nil, fmt.Errorf("catalog entry %q defined twice", e.Cluster)
		}
		c.entries[e.Cluster] = e
	}
	return c, nil
}

func validateURI(uri string) error {
	if strings.HasPrefix(uri, contentaddr.Scheme) {
		if _, err := contentaddr.ParseURI(uri); err != nil {
			return fmt.Errorf("invalid content uri %q: %w", uri, err)
		}
		return nil
	}
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("content uri %q must be ipfs:// or http(s)", uri)
	}
	return nil
}

// Default returns the production catalog.
func Default() *Catalog {
	c, err := New(defaultEntries)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultEntries = []models.BadgeMetadata{
	{Cluster: "Machine Learning", SkillName: "Machine Learning", ContentURI: "ipfs://bafkreibxxlgv4dphmpglmyic35fezeqm5icxvgtl7fxnp3jynr4ricwxzm"},
	{Cluster: "Web Developer", SkillName: "Web Developer", ContentURI: "ipfs://bafkreid7ynhgat725ymwjx2oijltcyabottskoxeuiwxigwitw6tz2lnli"},
	{Cluster: "App Developer", SkillName: "App Developer", ContentURI: "ipfs://bafkreibu5n7fj4wvs6vsl5kzgztr2rj3xufs2kryxxzyqxmeib2vngpw24"},
	{Cluster: "Cybersecurity Engineer", SkillName: "Cybersecurity Engineer", ContentURI: "ipfs://bafkreiat3tkr2p5w33vnnqnhqv5hcgwqwdna23mbgukh2v2vrwhdjmjyfm"},
	{Cluster: "Cloud Dev", SkillName: "Cloud Engineer", ContentURI: "ipfs://bafkreigwi7lcc6rrpu4vurf7agztb6vmdqsk556au4xymlxmo3hswgmi24"},
}

type fileFormat struct {
	Badges []models.BadgeMetadata `yaml:"badges"`
}

// Load reads a YAML catalog:
//
//	badges:
//	  - cluster: Machine Learning
//	    skill_name: Machine Learning
//	    content_uri: ipfs://bafk...
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Badges) == 0 {
		return nil, fmt.Errorf("catalog has no badges")
	}
	return New(f.Badges)
}

// Lookup returns the metadata for cluster, or ErrUnknownCluster.
func (c *Catalog) Lookup(cluster string) (models.BadgeMetadata, error) {
	m, ok := c.entries[cluster]
	if !ok {
		return models.BadgeMetadata{}, ErrUnknownCluster
	}
	return m, nil
}

// Entries returns every descriptor ordered by cluster.
func (c *Catalog) Entries() []models.BadgeMetadata {
	out := make([]models.BadgeMetadata, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cluster < out[j].Cluster })
	return out
}
