// Package delivery implements the screenshot destinations.
//
// Every destination satisfies Backend. New(cfg, deps) maps the configured
// uploader kind to its implementation once at startup:
//
//	noop      logs and succeeds (noop.go)
//	s3        S3-compatible PutObject via aws-sdk-go-v2 (s3.go)
//	gdrive    Google Drive through a service account (gdrive.go)
//	dropbox   Dropbox files/upload, OAuth2 PKCE (dropbox.go)
//	onedrive  Microsoft Graph path upload, OAuth2 (onedrive.go)
//	discord   channel webhook with the file attached (discord.go)
//	imgur     Imgur image upload, OAuth2 (imgur.go)
//
// The OAuth2 destinations share tokenManager (oauth.go): the access token,
// refresh token and expiry are stored together as one credential so a
// refresh replaces all three in a single atomic write, and refreshes are
// serialized so concurrent deliveries never mix old and new values.
//
// Authorize runs the interactive flow through Prompt (prompt.go). It is
// only called by the "auth" subcommand; destinations without an
// authorization step return ErrUnsupported.
package delivery
