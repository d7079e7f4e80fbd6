// Package kscrap stores scraped items in memory and appends them to
// delimited text files.
//
// A repository holds items of one type in typed, nullable columns. When an
// item of a wider type arrives, one that declares every stored field and
// more, the repository widens its columns once and keeps going; items of any
// other type are logged and dropped. Saves drain the stored rows to a CSV
// file on a background goroutine and can be paused, resumed and cancelled
// between rows. Rows written by a save are removed from memory, so the file
// grows by appending while memory only holds what is still pending.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/kscrap/kscrap/pkg/config"
//	    "github.com/kscrap/kscrap/pkg/listing"
//	    "github.com/kscrap/kscrap/pkg/repository"
//	)
//
//	cfg := config.NewRepositoryConfig()
//	cfg.Directory = "/data"
//	cfg.BaseName = "listings"
//
//	repo, err := repository.Create(cfg, []listing.Listing{
//	    {Street: "Sol", City: "Chiclana", Area: 300, Price: 300000},
//	})
//	if err != nil {
//	    return err
//	}
//	repo.Add(&listing.Dwelling{Rooms: 3}) // widens to Dwelling
//	err = repo.Save(context.Background())
//
// # Key Packages
//
//	pkg/item         - Item schemas, reflected struct items and records
//	pkg/columnar     - Typed nullable columns and the row source
//	pkg/writer       - Pausable, cancellable CSV stream writer
//	pkg/repository   - Widening and save policy
//	pkg/transmitter  - Forwarding stored items to a channel or Kafka
//	pkg/config       - Repository configuration with fallbacks
//	pkg/compression  - Optional compression of the output file
//	pkg/kscraperrors - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus collectors
//	pkg/observability - Tracing of saves
//
// # Configuration
//
// Configuration files are YAML. Environment variables are supported with
// ${VAR_NAME} syntax, and the CLI also reads KSCRAP_* variables and a .env
// file.
//
//	repository:
//	  directory: /data
//	  base_name: listings
//	  separator: ","
//	  compression: zstd
//	  auto_save: {enabled: true, interval: 30s}
package kscrap
