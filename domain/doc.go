// Package domain defines the core data structures of lunettes and the
// contracts its components depend on.
//
// It holds the Settings snapshot consumed by the styling pipeline, the font
// categories with their canonical remote sources, the log model, and the
// repository and storage interfaces implemented by the db and storage
// packages. Keeping them here lets the compass, fonts, stylesheet and bionic
// packages stay independent of SQLite, the proxy, or any other backing
// technology.
package domain
