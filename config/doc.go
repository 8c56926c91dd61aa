// Package config provides configuration loading and validation for edgeshelf.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (EDGESHELF_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// All config keys map to environment variables with EDGESHELF_ prefix:
//   - server.port → EDGESHELF_SERVER_PORT
//   - origin.type → EDGESHELF_ORIGIN_TYPE
//   - cache.backend → EDGESHELF_CACHE_BACKEND
//   - admin.secret → EDGESHELF_ADMIN_SECRET
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port, max_upload_size and shutdown_timeout
//   - Origin: the authoritative store (local or s3)
//   - Database, Storage: metadata index and blob path of the local origin
//   - S3: endpoint, bucket and credentials of the s3 origin
//   - Cache: edge cache backend (memory, disk or none) and its limits
//   - Admin: shared secret for the management routes; empty disables them
//   - CORS, Metrics, Log
//
// # Validation
//
// Struct tags cover single fields. Settings that depend on the chosen
// backend, such as s3.bucket for the s3 origin or cache.path for the disk
// cache, are checked after unmarshalling.
package config
