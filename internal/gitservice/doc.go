// Package gitservice clones and checks out repositories hosted on a git
// service using a per-service access token, without leaving that token in
// the repository's persisted configuration.
//
// The token travels inside the origin remote URL only for as long as a
// clone or checkout needs it. After a fresh clone the origin URL is reset to
// the caller's URL; around a checkout the origin URL is swapped to the
// credentialed form and swapped back whether or not the checkout succeeded.
//
// Callers must serialize operations per repository directory. Nothing here
// synchronizes concurrent writers of the same origin remote.
package gitservice
