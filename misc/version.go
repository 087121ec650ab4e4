// Package misc keeps build time information.
package misc

// Set with -ldflags "-X nightcss/misc.version=... -X nightcss/misc.gitHash=..."
var (
	version = "dev"
	gitHash = "unknown"
)

const appName = "nightcss"

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
