// Package services defines the error taxonomy shared between the
// collaborator adapters and the recovery manager, plus context helpers for
// correlating log records across a job attempt.
//
// Collaborators (generator, uploader, footage client) translate opaque
// third-party failures into one of the sentinel markers exactly once, at the
// adapter boundary. Everything above the boundary classifies with errors.Is
// and never inspects error text.
package services
