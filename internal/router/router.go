// Package router maps keys and region hints onto the fixed partition set.
// Routing is pure computation over configuration loaded at startup; the
// partition set never changes while the process runs.
package router

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Mode selects how the primary partition is chosen.
type Mode string

const (
	// ModeHash routes each key deterministically by key hash.
	ModeHash Mode = "hash"
	// ModeRegion routes by region hint with a default home region.
	ModeRegion Mode = "region"
)

// Partition describes one member of the partition set.
type Partition struct {
	Name   string `json:"name"`
	Region string `json:"region"`
	Driver string `json:"driver"`
}

// Router picks primary partitions and replication targets.
type Router struct {
	mode       Mode
	partitions []Partition
	byName     map[string]int
	byRegion   map[string]int
	home       string
	logger     *zap.Logger
}

// New builds a router over the configured partition set. The slice order is
// the stable iteration order used for fallback scans and stats.
func New(mode Mode, partitions []Partition, homeRegion string, logger *zap.Logger) (*Router, error) {
	if len(partitions) == 0 {
		return nil, fmt.Errorf("no partitions configured")
	}

	byName := make(map[string]int, len(partitions))
	byRegion := make(map[string]int)
	for i, p := range partitions {
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate partition name %q", p.Name)
		}
		byName[p.Name] = i
		if p.Region != "" {
			if _, dup := byRegion[p.Region]; !dup {
				byRegion[p.Region] = i
			}
		}
	}

	home := strings.ToLower(strings.TrimSpace(homeRegion))
	if mode == ModeRegion {
		if _, ok := byRegion[home]; !ok {
			return nil, fmt.Errorf("no partition serves default region %q", home)
		}
	}

	return &Router{
		mode:       mode,
		partitions: partitions,
		byName:     byName,
		byRegion:   byRegion,
		home:       home,
		logger:     logger,
	}, nil
}

// Mode returns the configured routing mode.
func (r *Router) Mode() Mode {
	return r.mode
}

// Route returns the hash-selected partition for a key. The same key always
// lands on the same partition while the partition count is unchanged.
func (r *Router) Route(key string) Partition {
	sum := sha256.Sum256([]byte(key))
	idx := binary.BigEndian.Uint64(sum[:8]) % uint64(len(r.partitions))
	return r.partitions[idx]
}

// Resolve returns the partition serving the hinted region. An empty or
// unknown hint falls back to the home region; the bool reports whether the
// hint was honored.
func (r *Router) Resolve(hint string) (Partition, bool) {
	region := strings.ToLower(strings.TrimSpace(hint))
	if region != "" {
		if idx, ok := r.byRegion[region]; ok {
			return r.partitions[idx], true
		}
	}
	return r.partitions[r.byRegion[r.home]], false
}

// Primary picks the primary partition for an operation: by key in hash
// mode, by hint in region mode. The bool is false when a region hint was
// ignored (hash mode honors no hints, so it is always true there).
func (r *Router) Primary(key, hint string) (Partition, bool) {
	if r.mode == ModeRegion {
		return r.Resolve(hint)
	}
	return r.Route(key), true
}

// ReplicaTargets returns every partition except the named primary, in
// stable order.
func (r *Router) ReplicaTargets(primary string) []Partition {
	targets := make([]Partition, 0, len(r.partitions)-1)
	for _, p := range r.partitions {
		if p.Name != primary {
			targets = append(targets, p)
		}
	}
	return targets
}

// Partitions returns the full partition set in stable order.
func (r *Router) Partitions() []Partition {
	return r.partitions
}

// HomeRegion returns the default region used when hints are absent or
// unknown.
func (r *Router) HomeRegion() string {
	return r.home
}
