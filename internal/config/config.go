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

// Package config is the Running Configuration for originshield: buckets
// (routing + replicas + cache/auth policy references), cache tier
// definitions, and the frontend/logging/metrics/tracing sections. It
// follows the same load-then-freeze shape as the teacher Trickster
// config: a TOML file is decoded into a fresh *RuntimeConfig, fields
// left unset in the file keep baked-in defaults (tracked via
// toml.MetaData.IsDefined), and the result is swapped into a
// package-level pointer that in-flight requests snapshot at accept
// time.
package config

import (
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
)

// current holds the active Running Configuration, returned by Get.
// Replaced wholesale (never mutated in place) on a successful reload.
var current atomic.Value // holds *RuntimeConfig

// Flags holds the parsed command line flags.
var Flags = CommandLineFlags{}

// LoaderWarnings accumulates non-fatal warnings produced while loading,
// for the caller to log once the logger is initialized.
var LoaderWarnings = make([]string, 0)

// Get returns the currently active configuration snapshot. Safe for
// concurrent use; callers should capture the pointer once per request
// rather than calling Get() repeatedly within a single request.
func Get() *RuntimeConfig {
	v, _ := current.Load().(*RuntimeConfig)
	return v
}

func set(c *RuntimeConfig) { current.Store(c) }

// RuntimeConfig is the root of the application configuration.
type RuntimeConfig struct {
	Main        *MainConfig                 `toml:"main"`
	Buckets     map[string]*BucketConfig    `toml:"buckets"`
	Caches      map[string]*CachingConfig   `toml:"caches"`
	AuthPolicies map[string]*AuthPolicyConfig `toml:"auth_policies"`
	Frontend    *FrontendConfig             `toml:"frontend"`
	Logging     *LoggingConfig              `toml:"logging"`
	Metrics     *MetricsConfig              `toml:"metrics"`
	Tracing     *TracingConfig              `toml:"tracing"`

	activeCaches map[string]bool
}

// MainConfig holds general configuration values.
type MainConfig struct {
	InstanceID        int    `toml:"instance_id"`
	ConfigHandlerPath string `toml:"config_handler_path"`
	PingHandlerPath   string `toml:"ping_handler_path"`
}

// CircuitBreakerParams configures the per-replica breaker (§4.2).
type CircuitBreakerParams struct {
	FailureThreshold  int `toml:"failure_threshold"`
	SuccessThreshold  int `toml:"success_threshold"`
	OpenTimeoutSecs   int `toml:"open_timeout_secs"`
	HalfOpenPermits   int `toml:"half_open_permits"`

	OpenTimeout time.Duration `toml:"-"`
}

// Copy returns a deep copy.
func (p CircuitBreakerParams) Copy() CircuitBreakerParams { return p }

// ReplicaConfig is one origin endpoint backing a bucket (§3 Replica).
type ReplicaConfig struct {
	Name               string `toml:"-"`
	Endpoint           string `toml:"endpoint"`
	Region             string `toml:"region"`
	BucketNameOverride string `toml:"bucket_name_override"`
	AccessKey          string `toml:"access_key"`
	SecretKey          string `toml:"secret_key"`
	Priority           uint32 `toml:"priority"`
	TimeoutSecs        int64  `toml:"timeout_secs"`
	PoolCapacity       int    `toml:"pool_capacity"`
	// AddressingStyle is "path" or "vhost"
	AddressingStyle string `toml:"addressing_style"`

	Timeout time.Duration `toml:"-"`
}

// Copy returns a deep copy of a ReplicaConfig.
func (r *ReplicaConfig) Copy() *ReplicaConfig {
	n := *r
	return &n
}

// RateLimitConfig configures the per-(client,bucket) token bucket (§4.14).
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RatePerSec        float64 `toml:"rate_per_sec"`
	Burst             int     `toml:"burst"`
	IdleTTLSecs       int     `toml:"idle_ttl_secs"`
	MaxTrackedClients int     `toml:"max_tracked_clients"`

	IdleTTL time.Duration `toml:"-"`
}

// CachePolicy references the cache tiers and TTL rules for a bucket (§3 BucketConfig.cache_policy).
type CachePolicy struct {
	Enabled                 bool     `toml:"enabled"`
	MemoryCacheName         string   `toml:"memory_cache_name"`
	DistributedCacheName    string   `toml:"distributed_cache_name"`
	DiskCacheName           string   `toml:"disk_cache_name"`
	HonorOriginCacheControl bool     `toml:"honor_origin_cache_control"`
	DefaultTTLSecs          int      `toml:"default_ttl_secs"`
	MaxTTLSecs              int      `toml:"max_ttl_secs"`
	MaxObjectSizeBytes      int64    `toml:"max_object_size_bytes"`
	StaleWhileRevalidateSecs int     `toml:"stale_while_revalidate_secs"`
	VaryHeaders             []string `toml:"vary_headers"`
	ImageTransformsEnabled  bool     `toml:"image_transforms_enabled"`

	DefaultTTL              time.Duration `toml:"-"`
	MaxTTL                  time.Duration `toml:"-"`
	StaleWhileRevalidate    time.Duration `toml:"-"`
}

// Copy returns a deep copy of a CachePolicy.
func (c CachePolicy) Copy() CachePolicy {
	n := c
	n.VaryHeaders = append([]string(nil), c.VaryHeaders...)
	return n
}

// BucketConfig is the routing and origin binding for one configured
// bucket (§3 BucketConfig).
type BucketConfig struct {
	Name             string                `toml:"-"`
	PathPrefix       string                `toml:"path_prefix"`
	IsDefault        bool                  `toml:"is_default"`
	AuthPolicyName   string                `toml:"auth_policy_name"`
	RequestTimeoutSecs int64               `toml:"request_timeout_secs"`
	CachePolicy      CachePolicy           `toml:"cache_policy"`
	CircuitBreaker   CircuitBreakerParams  `toml:"circuit_breaker"`
	RateLimit        RateLimitConfig       `toml:"rate_limit"`
	Replicas         []*ReplicaConfig      `toml:"replicas"`
	CORSAllowOrigins []string              `toml:"cors_allow_origins"`

	RequestTimeout time.Duration `toml:"-"`
}

// Copy returns a deep copy of a BucketConfig.
func (b *BucketConfig) Copy() *BucketConfig {
	n := &BucketConfig{
		Name:               b.Name,
		PathPrefix:         b.PathPrefix,
		IsDefault:          b.IsDefault,
		AuthPolicyName:     b.AuthPolicyName,
		RequestTimeoutSecs: b.RequestTimeoutSecs,
		RequestTimeout:     b.RequestTimeout,
		CachePolicy:        b.CachePolicy.Copy(),
		CircuitBreaker:     b.CircuitBreaker.Copy(),
		RateLimit:          b.RateLimit,
		CORSAllowOrigins:   append([]string(nil), b.CORSAllowOrigins...),
	}
	n.Replicas = make([]*ReplicaConfig, len(b.Replicas))
	for i, r := range b.Replicas {
		n.Replicas[i] = r.Copy()
	}
	return n
}

// AuthPolicyConfig configures the auth oracle used for a bucket (§4.3).
type AuthPolicyConfig struct {
	Name           string            `toml:"-"`
	OracleType     string            `toml:"oracle_type"` // "noop" | "jwt"
	TokenSource    string            `toml:"token_source"` // "bearer" | "header" | "query"
	TokenParamName string            `toml:"token_param_name"`
	FailOpen       bool              `toml:"fail_open"`
	JWT            JWTOracleConfig   `toml:"jwt"`
	DecisionCacheTTLSecs int         `toml:"decision_cache_ttl_secs"`
}

// JWTOracleConfig configures the built-in JWT oracle implementation.
type JWTOracleConfig struct {
	SigningSecret string   `toml:"signing_secret"`
	Issuer        string   `toml:"issuer"`
	Audience      string   `toml:"audience"`
	RequiredScope string   `toml:"required_scope"`
}

// Copy returns a deep copy of an AuthPolicyConfig.
func (a *AuthPolicyConfig) Copy() *AuthPolicyConfig {
	n := *a
	return &n
}

// CacheType enumerates supported tier backends.
type CacheType int

// Supported cache backend types.
const (
	CacheTypeMemory CacheType = iota
	CacheTypeFilesystem
	CacheTypeBBolt
	CacheTypeBadger
	CacheTypeRedis
)

// CacheTypeNames maps config strings to CacheType constants.
var CacheTypeNames = map[string]CacheType{
	"memory":     CacheTypeMemory,
	"filesystem": CacheTypeFilesystem,
	"bbolt":      CacheTypeBBolt,
	"badger":     CacheTypeBadger,
	"redis":      CacheTypeRedis,
}

// CachingConfig configures a single named cache tier instance.
type CachingConfig struct {
	Name        string `toml:"-"`
	CacheType   string `toml:"cache_type"`
	CacheTypeID CacheType `toml:"-"`
	Compression bool   `toml:"compression"`

	Index      CacheIndexConfig      `toml:"index"`
	Redis      RedisCacheConfig      `toml:"redis"`
	Filesystem FilesystemCacheConfig `toml:"filesystem"`
	BBolt      BBoltCacheConfig      `toml:"bbolt"`
	Badger     BadgerCacheConfig     `toml:"badger"`
	Memory     MemoryCacheConfig     `toml:"memory"`
}

// Copy returns a deep copy of a CachingConfig.
func (c *CachingConfig) Copy() *CachingConfig {
	n := *c
	return &n
}

// CacheIndexConfig defines the operation of the on-disk cache index /
// eviction policy (shared by filesystem, bbolt, and badger backends).
type CacheIndexConfig struct {
	ReapIntervalSecs      int   `toml:"reap_interval_secs"`
	FlushIntervalSecs     int   `toml:"flush_interval_secs"`
	MaxSizeBytes          int64 `toml:"max_size_bytes"`
	MaxSizeBackoffBytes   int64 `toml:"max_size_backoff_bytes"`

	ReapInterval  time.Duration `toml:"-"`
	FlushInterval time.Duration `toml:"-"`
}

// RedisCacheConfig configures the distributed cache adapter (§4.10).
type RedisCacheConfig struct {
	Endpoint         string `toml:"endpoint"`
	Password         string `toml:"password"`
	DB               int    `toml:"db"`
	PoolSize         int    `toml:"pool_size"`
	DialTimeoutMS    int    `toml:"dial_timeout_ms"`
	ReadTimeoutMS    int    `toml:"read_timeout_ms"`
	WriteTimeoutMS   int    `toml:"write_timeout_ms"`
	BreakerThreshold int    `toml:"breaker_threshold"`
}

// BadgerCacheConfig configures the alternate embedded-LSM disk backend.
type BadgerCacheConfig struct {
	Directory      string `toml:"directory"`
	ValueDirectory string `toml:"value_directory"`
}

// BBoltCacheConfig configures the metadata index database for the
// default filesystem disk cache backend.
type BBoltCacheConfig struct {
	Filename string `toml:"filename"`
	Bucket   string `toml:"bucket"`
}

// FilesystemCacheConfig configures the sharded on-disk body store.
type FilesystemCacheConfig struct {
	CachePath string `toml:"cache_path"`
}

// MemoryCacheConfig configures the in-process tier (§4.8).
type MemoryCacheConfig struct {
	MaxSizeBytes  int64 `toml:"max_size_bytes"`
	MaxItemBytes  int64 `toml:"max_item_bytes"`
	NumCounters   int64 `toml:"num_counters"`
}

// FrontendConfig configures the main HTTP listener.
type FrontendConfig struct {
	ListenAddress      string `toml:"listen_address"`
	ListenPort         int    `toml:"listen_port"`
	TLSListenAddress   string `toml:"tls_listen_address"`
	TLSListenPort      int    `toml:"tls_listen_port"`
	ConnectionsLimit   int    `toml:"connections_limit"`
	ShutdownGraceSecs  int    `toml:"shutdown_grace_secs"`

	ServeTLS bool `toml:"-"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	LogFile  string `toml:"log_file"`
	LogLevel string `toml:"log_level"`
}

// MetricsConfig holds a metrics listen address and port. No listener is
// started from them: /metrics is served on the frontend listener.
type MetricsConfig struct {
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
}

// TracingConfig configures the distributed tracer.
type TracingConfig struct {
	Implementation    string `toml:"tracer_implementation"`
	CollectorEndpoint string `toml:"tracing_collector"`
}

// NewConfig returns a RuntimeConfig initialized with baked-in defaults.
func NewConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Main: &MainConfig{
			ConfigHandlerPath: defaultConfigHandlerPath,
			PingHandlerPath:   defaultPingHandlerPath,
		},
		Buckets: map[string]*BucketConfig{},
		Caches: map[string]*CachingConfig{
			"default": NewCacheConfig(),
		},
		AuthPolicies: map[string]*AuthPolicyConfig{
			"default": {Name: "default", OracleType: "noop"},
		},
		Frontend: &FrontendConfig{
			ListenPort:        defaultProxyListenPort,
			ShutdownGraceSecs: defaultShutdownGraceSecs,
		},
		Logging: &LoggingConfig{
			LogFile:  defaultLogFile,
			LogLevel: defaultLogLevel,
		},
		Metrics: &MetricsConfig{
			ListenPort: defaultMetricsListenPort,
		},
		Tracing: &TracingConfig{
			Implementation: defaultTracerImplementation,
		},
	}
}

// NewCacheConfig returns a CachingConfig with default values.
func NewCacheConfig() *CachingConfig {
	return &CachingConfig{
		CacheType:   defaultCacheType,
		CacheTypeID: defaultCacheTypeID,
		Compression: defaultCacheCompression,
		Redis: RedisCacheConfig{
			Endpoint:         defaultRedisEndpoint,
			PoolSize:         defaultRedisPoolSize,
			DialTimeoutMS:    defaultRedisDialTimeoutMS,
			ReadTimeoutMS:    defaultRedisReadTimeoutMS,
			WriteTimeoutMS:   defaultRedisWriteTimeoutMS,
			BreakerThreshold: defaultRedisBreakerThreshold,
		},
		Filesystem: FilesystemCacheConfig{CachePath: defaultCachePath},
		BBolt:      BBoltCacheConfig{Filename: defaultBBoltFile, Bucket: defaultBBoltBucket},
		Badger:     BadgerCacheConfig{Directory: defaultCachePath, ValueDirectory: defaultCachePath},
		Memory: MemoryCacheConfig{
			MaxSizeBytes: defaultMemoryMaxSizeBytes,
			MaxItemBytes: defaultMemoryMaxItemBytes,
			NumCounters:  defaultMemoryNumCounters,
		},
		Index: CacheIndexConfig{
			ReapIntervalSecs:    defaultCacheIndexReap,
			FlushIntervalSecs:   defaultCacheIndexFlush,
			MaxSizeBytes:        defaultCacheMaxSizeBytes,
			MaxSizeBackoffBytes: defaultMaxSizeBackoffBytes,
		},
	}
}

// NewBucketConfig returns a BucketConfig with default values applied.
func NewBucketConfig() *BucketConfig {
	return &BucketConfig{
		RequestTimeoutSecs: defaultRequestTimeoutSecs,
		CachePolicy: CachePolicy{
			Enabled:                 true,
			MemoryCacheName:         "default",
			DefaultTTLSecs:          defaultTTLSecs,
			MaxTTLSecs:              defaultMaxTTLSecs,
			MaxObjectSizeBytes:      defaultMaxObjectSizeBytes,
			HonorOriginCacheControl: true,
			VaryHeaders:             []string{"Accept-Encoding"},
		},
		CircuitBreaker: CircuitBreakerParams{
			FailureThreshold: defaultFailureThreshold,
			SuccessThreshold: defaultSuccessThreshold,
			OpenTimeoutSecs:  defaultOpenTimeoutSecs,
			HalfOpenPermits:  defaultHalfOpenPermits,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RatePerSec:        defaultRateLimitPerSec,
			Burst:             defaultRateLimitBurst,
			IdleTTLSecs:       defaultRateLimitIdleTTLSecs,
			MaxTrackedClients: defaultRateLimitMaxClients,
		},
	}
}

// loadFile loads application configuration from a TOML file.
func (c *RuntimeConfig) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return err
	}
	return c.setDefaults(&md)
}

func (c *RuntimeConfig) setDefaults(metadata *toml.MetaData) error {
	c.processAuthPolicies()
	c.processBuckets(metadata)
	c.processCaches()
	return c.validate()
}

func (c *RuntimeConfig) processAuthPolicies() {
	for k, a := range c.AuthPolicies {
		a.Name = k
		if a.OracleType == "" {
			a.OracleType = "noop"
		}
		if a.TokenSource == "" {
			a.TokenSource = "bearer"
		}
	}
}

func (c *RuntimeConfig) processBuckets(metadata *toml.MetaData) {
	c.activeCaches = make(map[string]bool)
	for k, v := range c.Buckets {
		b := NewBucketConfig()
		b.Name = k
		b.PathPrefix = v.PathPrefix
		b.IsDefault = v.IsDefault
		b.AuthPolicyName = v.AuthPolicyName

		if metadata.IsDefined("buckets", k, "request_timeout_secs") {
			b.RequestTimeoutSecs = v.RequestTimeoutSecs
		}
		b.RequestTimeout = time.Duration(b.RequestTimeoutSecs) * time.Second

		if metadata.IsDefined("buckets", k, "cache_policy") {
			cp := v.CachePolicy
			if cp.MemoryCacheName == "" {
				cp.MemoryCacheName = b.CachePolicy.MemoryCacheName
			}
			if cp.DefaultTTLSecs == 0 {
				cp.DefaultTTLSecs = b.CachePolicy.DefaultTTLSecs
			}
			if cp.MaxTTLSecs == 0 {
				cp.MaxTTLSecs = b.CachePolicy.MaxTTLSecs
			}
			if cp.MaxObjectSizeBytes == 0 {
				cp.MaxObjectSizeBytes = b.CachePolicy.MaxObjectSizeBytes
			}
			if len(cp.VaryHeaders) == 0 {
				cp.VaryHeaders = b.CachePolicy.VaryHeaders
			}
			b.CachePolicy = cp
		}
		if b.CachePolicy.MemoryCacheName != "" {
			c.activeCaches[b.CachePolicy.MemoryCacheName] = true
		}
		if b.CachePolicy.DistributedCacheName != "" {
			c.activeCaches[b.CachePolicy.DistributedCacheName] = true
		}
		if b.CachePolicy.DiskCacheName != "" {
			c.activeCaches[b.CachePolicy.DiskCacheName] = true
		}
		b.CachePolicy.DefaultTTL = time.Duration(b.CachePolicy.DefaultTTLSecs) * time.Second
		b.CachePolicy.MaxTTL = time.Duration(b.CachePolicy.MaxTTLSecs) * time.Second
		b.CachePolicy.StaleWhileRevalidate = time.Duration(b.CachePolicy.StaleWhileRevalidateSecs) * time.Second

		if metadata.IsDefined("buckets", k, "circuit_breaker") {
			cb := v.CircuitBreaker
			if cb.FailureThreshold == 0 {
				cb.FailureThreshold = b.CircuitBreaker.FailureThreshold
			}
			if cb.SuccessThreshold == 0 {
				cb.SuccessThreshold = b.CircuitBreaker.SuccessThreshold
			}
			if cb.OpenTimeoutSecs == 0 {
				cb.OpenTimeoutSecs = b.CircuitBreaker.OpenTimeoutSecs
			}
			if cb.HalfOpenPermits == 0 {
				cb.HalfOpenPermits = b.CircuitBreaker.HalfOpenPermits
			}
			b.CircuitBreaker = cb
		}
		b.CircuitBreaker.OpenTimeout = time.Duration(b.CircuitBreaker.OpenTimeoutSecs) * time.Second

		if metadata.IsDefined("buckets", k, "rate_limit") {
			b.RateLimit = v.RateLimit
		}
		b.RateLimit.IdleTTL = time.Duration(b.RateLimit.IdleTTLSecs) * time.Second

		b.Replicas = make([]*ReplicaConfig, 0, len(v.Replicas))
		for i, r := range v.Replicas {
			rc := r.Copy()
			if rc.Name == "" {
				rc.Name = fmt.Sprintf("%s-replica-%d", k, i)
			}
			if rc.TimeoutSecs == 0 {
				rc.TimeoutSecs = defaultReplicaTimeoutSecs
			}
			if rc.PoolCapacity == 0 {
				rc.PoolCapacity = defaultReplicaPoolCapacity
			}
			if rc.AddressingStyle == "" {
				rc.AddressingStyle = "path"
			}
			rc.Timeout = time.Duration(rc.TimeoutSecs) * time.Second
			b.Replicas = append(b.Replicas, rc)
		}

		c.Buckets[k] = b
	}
}

func (c *RuntimeConfig) processCaches() {
	for k, v := range c.Caches {
		if _, ok := c.activeCaches[k]; !ok && k != "default" {
			delete(c.Caches, k)
			continue
		}
		cc := NewCacheConfig()
		cc.Name = k
		if v.CacheType != "" {
			cc.CacheType = strings.ToLower(v.CacheType)
		}
		if n, ok := CacheTypeNames[cc.CacheType]; ok {
			cc.CacheTypeID = n
		}
		cc.Compression = v.Compression

		if v.Index.MaxSizeBytes != 0 {
			cc.Index.MaxSizeBytes = v.Index.MaxSizeBytes
		}
		if v.Index.MaxSizeBackoffBytes != 0 {
			cc.Index.MaxSizeBackoffBytes = v.Index.MaxSizeBackoffBytes
		}
		if v.Index.ReapIntervalSecs != 0 {
			cc.Index.ReapIntervalSecs = v.Index.ReapIntervalSecs
		}
		if v.Index.FlushIntervalSecs != 0 {
			cc.Index.FlushIntervalSecs = v.Index.FlushIntervalSecs
		}
		cc.Index.ReapInterval = time.Duration(cc.Index.ReapIntervalSecs) * time.Second
		cc.Index.FlushInterval = time.Duration(cc.Index.FlushIntervalSecs) * time.Second

		if v.Redis.Endpoint != "" {
			cc.Redis.Endpoint = v.Redis.Endpoint
		}
		cc.Redis.Password = v.Redis.Password
		if v.Redis.PoolSize != 0 {
			cc.Redis.PoolSize = v.Redis.PoolSize
		}
		if v.Filesystem.CachePath != "" {
			cc.Filesystem.CachePath = v.Filesystem.CachePath
		}
		if v.BBolt.Filename != "" {
			cc.BBolt.Filename = v.BBolt.Filename
		}
		if v.BBolt.Bucket != "" {
			cc.BBolt.Bucket = v.BBolt.Bucket
		}
		if v.Badger.Directory != "" {
			cc.Badger.Directory = v.Badger.Directory
		}
		if v.Memory.MaxSizeBytes != 0 {
			cc.Memory.MaxSizeBytes = v.Memory.MaxSizeBytes
		}
		if v.Memory.MaxItemBytes != 0 {
			cc.Memory.MaxItemBytes = v.Memory.MaxItemBytes
		}
		if v.Memory.NumCounters != 0 {
			cc.Memory.NumCounters = v.Memory.NumCounters
		}

		c.Caches[k] = cc
	}
}

func (c *RuntimeConfig) validate() error {
	prefixes := make(map[string]bool)
	for k, b := range c.Buckets {
		if b.PathPrefix == "" {
			return fmt.Errorf("bucket %q missing path_prefix", k)
		}
		if prefixes[b.PathPrefix] {
			return fmt.Errorf("duplicate path_prefix %q", b.PathPrefix)
		}
		prefixes[b.PathPrefix] = true

		if b.CachePolicy.MemoryCacheName != "" {
			if _, ok := c.Caches[b.CachePolicy.MemoryCacheName]; !ok {
				return fmt.Errorf("bucket %q references unknown memory cache %q", k, b.CachePolicy.MemoryCacheName)
			}
		}
		if b.CachePolicy.DistributedCacheName != "" {
			if _, ok := c.Caches[b.CachePolicy.DistributedCacheName]; !ok {
				return fmt.Errorf("bucket %q references unknown distributed cache %q", k, b.CachePolicy.DistributedCacheName)
			}
		}
		if b.CachePolicy.DiskCacheName != "" {
			if _, ok := c.Caches[b.CachePolicy.DiskCacheName]; !ok {
				return fmt.Errorf("bucket %q references unknown disk cache %q", k, b.CachePolicy.DiskCacheName)
			}
		}
		if b.AuthPolicyName != "" {
			if _, ok := c.AuthPolicies[b.AuthPolicyName]; !ok {
				return fmt.Errorf("bucket %q references unknown auth policy %q", k, b.AuthPolicyName)
			}
		}
		if len(b.Replicas) == 0 {
			return fmt.Errorf("bucket %q has no replicas configured", k)
		}
	}
	return nil
}

// String renders the configuration as TOML with secrets redacted, for
// the config-dump admin endpoint.
func (c *RuntimeConfig) String() string {
	cp := &RuntimeConfig{
		Main: c.Main, Frontend: c.Frontend, Logging: c.Logging,
		Metrics: c.Metrics, Tracing: c.Tracing,
		Buckets: map[string]*BucketConfig{}, Caches: map[string]*CachingConfig{},
		AuthPolicies: map[string]*AuthPolicyConfig{},
	}
	for k, b := range c.Buckets {
		nb := b.Copy()
		for _, r := range nb.Replicas {
			r.AccessKey = "*****"
			r.SecretKey = "*****"
		}
		cp.Buckets[k] = nb
	}
	for k, cc := range c.Caches {
		ncc := cc.Copy()
		if ncc.Redis.Password != "" {
			ncc.Redis.Password = "*****"
		}
		cp.Caches[k] = ncc
	}
	for k, a := range c.AuthPolicies {
		na := a.Copy()
		if na.JWT.SigningSecret != "" {
			na.JWT.SigningSecret = "*****"
		}
		cp.AuthPolicies[k] = na
	}

	var buf bytes.Buffer
	e := toml.NewEncoder(&buf)
	_ = e.Encode(cp)
	return buf.String()
}
