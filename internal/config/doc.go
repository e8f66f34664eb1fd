// Package config loads and watches the exporter configuration file
// (config.yml, or the path in $MPE_CONFIG).
//
// Top-level types:
//   - Config: listen address/port, endpoint paths, log level, scrape
//     concurrency, rcon and lookup settings, servers []
//   - Server: server_name, stats_root, install_root, server_ip, rcon_port,
//     rcon_password / rcon_password_env; Password() resolves the env var
//   - RCONConfig: command and timeout shared by all servers
//   - LookupConfig: name-history API base URL, timeout, rate limit, burst
//
// Load(path) reads the YAML file through viper, lets MPE_* environment
// variables override scalar keys (MPE_PORT, MPE_LOOKUP_RATE_LIMIT, ...),
// applies defaults, then validates. Every failure is returned as *Error and
// is fatal at startup. OpenOrCreate writes a default file first when none
// exists.
//
// Watch(ctx, path, onChange) uses fsnotify to detect edits. Servers are
// fixed for the lifetime of the process, so callers use it to warn that a
// restart is needed.
package config
