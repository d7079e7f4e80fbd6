// Package config holds the configuration of kscrap repositories and the CLI.
//
// Repository settings never fail hard: Normalize replaces every invalid value
// with its default and reports what it replaced.
//
//	cfg := config.NewRepositoryConfig()
//	cfg.SaveIn("/data/", nil)
//	cfg.SetBaseName("listings")
//	for _, err := range cfg.Normalize(log, nil) {
//	    // already logged as warnings
//	}
//	path := cfg.FilePath() // /data/listings.csv
//
// Files are YAML with ${VAR_NAME} environment substitution:
//
//	repository:
//	  directory: ${DATA_DIR}
//	  base_name: listings
//	  separator: ";"
//	  compression: gzip
//	  auto_save:
//	    enabled: true
//	    interval: 1m
package config
