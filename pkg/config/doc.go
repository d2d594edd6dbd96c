// Package config loads the modelops platform configuration.
//
// Configuration is YAML or TOML, chosen by file extension:
//
//	topology: modeling/topology.yaml
//	audit:
//	  path: logs/audit.log
//	  sqlite: logs/audit.db
//	runners:
//	  terraform: terraform
//	  powershell: pwsh
//	executor:
//	  timeout: 30m
//	policy:
//	  paths: [policies]
//	  disabled: [flag-names]
//	intent:
//	  aliases:
//	    ops: MyOperationsVM
//	  script: router.star
//	logging:
//	  level: info
//	  format: console
//	metrics:
//	  enabled: true
//	  listen: 127.0.0.1:9090
//	tracing:
//	  enabled: false
//	  exporter: none
//
// Relative paths are resolved against the config file's directory. The
// LOG_LEVEL environment variable overrides logging.level.
package config
