// Package file provides a file-backed implementation of the secret store
// port. All key/value pairs live in a single ChaCha20-Poly1305-sealed file,
// and an fsnotify watcher surfaces rewrites made by other processes as
// change events.
package file
