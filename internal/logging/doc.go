// Package logging provides structured logging utilities for timeslotseeker.
//
// Loggers are plain log/slog loggers. Setup installs a text or JSON handler as
// the process default; AppendCtx attaches attributes (such as a search ID) to
// a context so every record logged with it carries them.
//
// Participant addresses must never be logged directly. Use UserHash or
// Participants, which log a truncated SHA-256 of each address:
//
//	logger.Info("busy lookup complete",
//	    logging.Participants(req.Participants),
//	    logging.Status(logging.StatusSuccess))
package logging
