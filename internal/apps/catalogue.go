package apps

import "strings"

// packageCatalogue maps friendly names to Android package names for the
// apps commonly launched by voice and automation commands.
var packageCatalogue = map[string]string{
	"Netflix":     "com.netflix.ninja",
	"Prime Video": "com.amazon.avod.thirdpartyclient",
	"YouTube":     "com.google.android.youtube.tv",
	"Disney+":     "com.disney.disneyplus",
	"Hulu":        "com.hulu.plus",
	"HBO Max":     "com.hbo.hbonow",
	"Spotify":     "com.spotify.tv.android",
	"Plex":        "com.plexapp.android",
}

// Resolve turns an app reference into an Android package name.
//
// Three forms are accepted, in order:
//  1. A string containing a dot is treated as a package name already
//  2. An exact catalogue match ("Netflix")
//  3. A case-insensitive catalogue match ("netflix", "NETFLIX")
//
// Returns:
//   - string: The package name
//   - bool: False when the reference matched nothing
func Resolve(name string) (string, bool) {
	if name == "" {
		return "", false
	}

	if strings.Contains(name, ".") {
		return name, true
	}

	if pkg, ok := packageCatalogue[name]; ok {
		return pkg, true
	}

	lower := strings.ToLower(name)
	for friendly, pkg := range packageCatalogue {
		if strings.ToLower(friendly) == lower {
			return pkg, true
		}
	}

	return "", false
}

// KnownApps returns the friendly names in the built-in catalogue, for
// discovery payloads and documentation endpoints.
func KnownApps() []string {
	names := make([]string, 0, len(packageCatalogue))
	for name := range packageCatalogue {
		names = append(names, name)
	}
	return names
}
