// Package logger provides a structured logging interface for the harvester.
//
// It wraps zerolog behind a small Logger interface so that components can
// attach fields (source, cursor, run_id) without depending on zerolog
// directly, and so tests can capture messages with TestLogger.
//
// Basic usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("source", "KAFKA").Info("harvest started")
//
//	log := logger.GetLogger().WithFields(map[string]interface{}{
//	    "source": "KAFKA",
//	    "cursor": 150,
//	})
//	log.WithError(err).Error("page fetch failed")
//
// Stderr gets the console writer, or raw JSON when logging.format is
// "json". When logging.file is set, records also go to the file as JSON.
package logger
