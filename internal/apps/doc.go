// Package apps resolves friendly app names to Android package names and
// manages each device's installed-app list.
//
// Resolution is layered: a built-in catalogue of well-known streaming apps
// answers names like "Netflix" without touching the database, and anything
// that already looks like a package name ("com.netflix.ninja") passes
// through unchanged. The database keeps per-device app rows for the REST
// API and the shared popular_apps catalogue for seeding new devices.
package apps
