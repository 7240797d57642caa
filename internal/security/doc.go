// Package security inspects the configured destination before screenshots
// are sent to it.
//
// Check dials the uploader's HTTPS endpoint and reports the state of its
// leaf certificate. Audit looks for local problems: plain-HTTP endpoints,
// secrets written literally into a config file others can read, and
// credential files with loose permissions.
package security
