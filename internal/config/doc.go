// Package config loads and watches the deckshot configuration file
// (deckshot.yml).
//
// Top-level types:
//   - Config: deckshot_path, screenshots_path, retrier_interval, log_level,
//     metrics_file, uploader
//   - Uploader: kind (noop|s3|gdrive|dropbox|onedrive|discord|imgur) plus
//     one settings section per kind; only the section named by kind is read
//
// Load(path) reads the YAML file, expands $(ENV_VAR) placeholders, applies
// defaults (Steam Deck paths, 60s retry interval, info logging), then
// validates the fields required by the selected uploader.
//
// Watch(ctx, path, onChange) uses fsnotify on the parent directory and calls
// onChange with the newly parsed Config. The uploader itself is never
// rebuilt on reload; callers apply only what is safe to change at runtime.
package config
