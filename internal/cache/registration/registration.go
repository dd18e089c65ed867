/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package registration builds concrete cache.Tier instances from
// configuration, the same factory role the teacher's own
// internal/cache registration package plays: translate a named
// CachingConfig section into a live backend, keyed by cache_type.
package registration

import (
	"fmt"

	"github.com/comcast/originshield/internal/cache"
	"github.com/comcast/originshield/internal/cache/diskbadger"
	"github.com/comcast/originshield/internal/cache/disk"
	"github.com/comcast/originshield/internal/cache/distributed"
	"github.com/comcast/originshield/internal/cache/memory"
	"github.com/comcast/originshield/internal/config"
)

// NewTier constructs the cache.Tier named by cfg.CacheTypeID.
func NewTier(name string, cfg *config.CachingConfig) (cache.Tier, error) {
	switch cfg.CacheTypeID {
	case config.CacheTypeMemory:
		return memory.New(name, cfg)
	case config.CacheTypeFilesystem, config.CacheTypeBBolt:
		return disk.New(name, cfg)
	case config.CacheTypeBadger:
		return diskbadger.New(name, cfg)
	case config.CacheTypeRedis:
		return distributed.New(name, cfg)
	default:
		return nil, fmt.Errorf("registration: unknown cache type %q for cache %q", cfg.CacheType, name)
	}
}

// NewTiers builds every cache named in cfgs, returning them in the
// fixed memory -> distributed -> disk order the orchestrator expects
// regardless of the order caches appear in configuration.
func NewTiers(cfgs map[string]*config.CachingConfig, names []string) ([]cache.Tier, error) {
	var memoryTiers, distributedTiers, diskTiers []cache.Tier
	for _, n := range names {
		cfg, ok := cfgs[n]
		if !ok {
			return nil, fmt.Errorf("registration: cache %q not found in configuration", n)
		}
		t, err := NewTier(n, cfg)
		if err != nil {
			return nil, err
		}
		switch cfg.CacheTypeID {
		case config.CacheTypeMemory:
			memoryTiers = append(memoryTiers, t)
		case config.CacheTypeRedis:
			distributedTiers = append(distributedTiers, t)
		default:
			diskTiers = append(diskTiers, t)
		}
	}

	var ordered []cache.Tier
	ordered = append(ordered, memoryTiers...)
	ordered = append(ordered, distributedTiers...)
	ordered = append(ordered, diskTiers...)
	return ordered, nil
}
