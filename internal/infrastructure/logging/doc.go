// Package logging provides structured logging for the controller.
//
// It wraps log/slog with JSON or text output, level filtering and default
// service/version fields. Packages that log accept a small Logger interface,
// which *Logger satisfies.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log secrets or tokens.
package logging
