// Package logging provides the slog construction and attribute helpers used
// across shortline. Components never build their own handlers; they receive a
// *slog.Logger and tag records with the standardized field constants defined
// here.
package logging
