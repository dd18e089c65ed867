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

package config

const (
	defaultLogFile  = ""
	defaultLogLevel = "INFO"

	defaultProxyListenPort    = 9090
	defaultMetricsListenPort  = 8082
	defaultShutdownGraceSecs  = 30

	defaultTracerImplementation = "stdout"

	defaultCacheType        = "memory"
	defaultCacheTypeID      = CacheTypeMemory
	defaultCacheCompression = true

	defaultCachePath = "/tmp/originshield"

	defaultRedisEndpoint         = "redis:6379"
	defaultRedisPoolSize         = 20
	defaultRedisDialTimeoutMS    = 500
	defaultRedisReadTimeoutMS    = 500
	defaultRedisWriteTimeoutMS   = 500
	defaultRedisBreakerThreshold = 5

	defaultBBoltFile   = "index.db"
	defaultBBoltBucket = "originshield"

	defaultCacheIndexReap        = 3
	defaultCacheIndexFlush       = 5
	defaultCacheMaxSizeBytes     = 8 * 1024 * 1024 * 1024
	defaultMaxSizeBackoffBytes   = 256 * 1024 * 1024
	defaultMaxObjectSizeBytes    = 64 * 1024 * 1024

	defaultMemoryMaxSizeBytes = 256 * 1024 * 1024
	defaultMemoryMaxItemBytes = 8 * 1024 * 1024
	defaultMemoryNumCounters  = 1e6

	defaultTTLSecs            = 300
	defaultMaxTTLSecs         = 86400
	defaultRequestTimeoutSecs = 30

	defaultFailureThreshold = 5
	defaultSuccessThreshold = 3
	defaultOpenTimeoutSecs  = 30
	defaultHalfOpenPermits  = 2

	defaultReplicaTimeoutSecs = 15
	defaultReplicaPoolCapacity = 64

	defaultRateLimitPerSec      = 50
	defaultRateLimitBurst       = 100
	defaultRateLimitIdleTTLSecs = 300
	defaultRateLimitMaxClients  = 100000

	defaultConfigHandlerPath = "/originshield/config"
	defaultPingHandlerPath   = "/originshield/ping"
)
