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

import (
	"flag"
	"fmt"
	"os"
)

// CommandLineFlags holds the values of the supported command line flags.
type CommandLineFlags struct {
	ConfigPath   string
	LogLevel     string
	PrintVersion bool

	customPath bool
}

func (c *RuntimeConfig) parseFlags(applicationName string, arguments []string) {
	fs := flag.NewFlagSet(applicationName, flag.ContinueOnError)
	fs.StringVar(&Flags.ConfigPath, "config", "/etc/originshield/originshield.toml", "path to the TOML configuration file")
	fs.StringVar(&Flags.LogLevel, "log-level", "", "overrides logging.log_level")
	fs.BoolVar(&Flags.PrintVersion, "version", false, "print version and exit")
	_ = fs.Parse(arguments)
	Flags.customPath = Flags.ConfigPath != "/etc/originshield/originshield.toml"
}

func (c *RuntimeConfig) loadEnvVars() {
	if v := os.Getenv("ORIGINSHIELD_LOG_LEVEL"); v != "" {
		c.Logging.LogLevel = v
	}
	if v := os.Getenv("ORIGINSHIELD_LISTEN_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &c.Frontend.ListenPort)
	}
}

func (c *RuntimeConfig) loadFlags() {
	if Flags.LogLevel != "" {
		c.Logging.LogLevel = Flags.LogLevel
	}
}

// Load builds the Running Configuration: defaults, then TOML file, then
// environment variables, then command line flags (later sources win),
// validates bucket/cache/auth-policy references, and installs the
// result as the active snapshot returned by Get().
func Load(applicationName, applicationVersion string, arguments []string) error {
	LoaderWarnings = make([]string, 0)

	c := NewConfig()
	c.parseFlags(applicationName, arguments)
	if Flags.PrintVersion {
		return nil
	}

	if err := c.loadFile(Flags.ConfigPath); err != nil {
		if Flags.customPath {
			return err
		}
		LoaderWarnings = append(LoaderWarnings, fmt.Sprintf("no config file loaded from %s: %v; using defaults", Flags.ConfigPath, err))
		if err := c.setDefaults(nil); err != nil {
			return err
		}
	}

	c.loadEnvVars()
	c.loadFlags()

	if len(c.Buckets) == 0 {
		return fmt.Errorf("no buckets configured")
	}

	set(c)
	return nil
}

// Reload re-parses the configuration file at the path most recently
// used by Load and, on success, atomically swaps it in for use by new
// requests. In-flight requests keep the snapshot they captured at
// accept time (§5 Config snapshot). Triggered by SIGHUP.
func Reload() error {
	c := NewConfig()
	if err := c.loadFile(Flags.ConfigPath); err != nil {
		return err
	}
	if len(c.Buckets) == 0 {
		return fmt.Errorf("no buckets configured")
	}
	set(c)
	return nil
}
