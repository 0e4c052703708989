// Package mail renders the verification email and delivers HTML mail.
//
// SMTP sends through a plain SMTP relay with optional PLAIN auth. LogMailer
// writes messages to a slog.Logger instead of sending them and is meant for
// local development.
package mail
