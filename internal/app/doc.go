// Package app provides the application service layer.
//
// Service is the façade consumed by the HTTP layer. Announcer is the single
// logical announce step: push hint plus change log record, each half
// soft-failing on its own.
package app
