package cache

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of partition policies:
//
//	partitions:
//	  incidents:
//	    ttl: 10m
//	    max_entries: 500
//	  searches:
//	    ttl: 5m
//	    max_entries: 200
//
// TTLs accept the extended duration grammar ("90s", "10m", "1h30m", "1d").
type FileConfig struct {
	Partitions map[string]FilePolicy `yaml:"partitions"`
}

// FilePolicy is one partition's policy as written in a config file.
type FilePolicy struct {
	TTL        string `yaml:"ttl"`
	MaxEntries int    `yaml:"max_entries"`
}

// DefaultPolicies returns the built-in partition table.
func DefaultPolicies() map[string]PartitionConfig {
	return map[string]PartitionConfig{
		PartitionIncidents: IncidentsPolicy,
		PartitionSearches:  SearchesPolicy,
		PartitionSimilar:   SimilarPolicy,
		PartitionExports:   ExportsPolicy,
	}
}

// ParsePolicies decodes YAML policy overrides and merges them over the
// defaults. A partition present in the file replaces the default of the same
// name; unnamed partitions keep their defaults.
func ParsePolicies(data []byte) (map[string]PartitionConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrap(err, "cache: parse config")
	}

	policies := DefaultPolicies()
	for name, fp := range fc.Partitions {
		policy := policies[name]
		if fp.TTL != "" {
			ttl, err := str2duration.ParseDuration(fp.TTL)
			if err != nil {
				return nil, errors.Wrapf(err, "cache: partition %q: invalid ttl %q", name, fp.TTL)
			}
			policy.TTL = ttl
		}
		if fp.MaxEntries > 0 {
			policy.MaxEntries = fp.MaxEntries
		}
		policies[name] = policy
	}
	return policies, nil
}

// LoadPolicies reads a YAML policy file and merges it over the defaults.
func LoadPolicies(path string) (map[string]PartitionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cache: read config %q", path)
	}
	return ParsePolicies(data)
}
