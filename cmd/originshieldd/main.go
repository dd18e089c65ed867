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

// Command originshieldd is the proxy's entry point: it loads
// configuration, wires every component, and runs the frontend listener
// (which also serves /metrics) until a termination signal arrives.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/comcast/originshield/internal/config"
	"github.com/comcast/originshield/internal/routing"
	"github.com/comcast/originshield/internal/routing/registration"
	"github.com/comcast/originshield/internal/runtime"
	"github.com/comcast/originshield/internal/util/log"
	"github.com/comcast/originshield/internal/util/metrics"
	"github.com/comcast/originshield/internal/util/tracing"
)

func main() {
	if err := config.Load(runtime.ApplicationName, runtime.ApplicationVersion, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	if config.Flags.PrintVersion {
		fmt.Printf("%s %s\n", runtime.ApplicationName, runtime.ApplicationVersion)
		return
	}

	cfg := config.Get()
	log.SetGlobalLogger(log.New(cfg.Logging.LogLevel, cfg.Logging.LogFile))
	for _, w := range config.LoaderWarnings {
		log.Warn("configuration warning", log.Pairs{"detail": w})
	}

	raiseFileDescriptorLimit()

	shutdownTracer, err := tracing.Init(cfg.Tracing.Implementation, cfg.Tracing.CollectorEndpoint)
	if err != nil {
		log.Fatal(1, "tracer initialization failed", log.Pairs{"error": err.Error()})
	}
	defer shutdownTracer()

	metrics.Register()

	if err := registration.RegisterProxyRoutes(); err != nil {
		log.Fatal(1, "route registration failed", log.Pairs{"error": err.Error()})
	}

	frontend := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Frontend.ListenAddress, cfg.Frontend.ListenPort),
		Handler: routing.Router,
	}

	go func() {
		log.Info("frontend listening", log.Pairs{"address": frontend.Addr})
		if err := frontend.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(1, "frontend listener failed", log.Pairs{"error": err.Error()})
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			if err := config.Reload(); err != nil {
				log.Warn("configuration reload failed", log.Pairs{"error": err.Error()})
				continue
			}
			if err := registration.RegisterProxyRoutes(); err != nil {
				log.Warn("route re-registration failed after reload", log.Pairs{"error": err.Error()})
				continue
			}
			log.Info("configuration reloaded", log.Pairs{})
		case syscall.SIGINT, syscall.SIGTERM:
			log.Info("shutting down", log.Pairs{"signal": sig.String()})
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Frontend.ShutdownGraceSecs)*time.Second)
			_ = frontend.Shutdown(ctx)
			cancel()
			return
		}
	}
}

// raiseFileDescriptorLimit raises RLIMIT_NOFILE to its hard ceiling: a
// proxy pooling connections across many replicas and cache tiers
// exhausts the conservative default (often 1024) well before it
// exhausts any other resource.
func raiseFileDescriptorLimit() {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		log.Warn("could not read RLIMIT_NOFILE", log.Pairs{"error": err.Error()})
		return
	}
	if rlimit.Cur >= rlimit.Max {
		return
	}
	rlimit.Cur = rlimit.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		log.Warn("could not raise RLIMIT_NOFILE", log.Pairs{"error": err.Error()})
		return
	}
	log.Info("raised file descriptor limit", log.Pairs{"limit": rlimit.Cur})
}
