// Package version holds the version of the packsync binary, which is set at
// build time with `-ldflags "-X github.com/sidkik/packsync/pkg/version.Version=..."`.
package version

// EmptyValue is the version of binaries that weren't built with the release
// flags, such as during unit tests.
const EmptyValue = "dev"

// Version is the git tag of the release. On non-release builds, it may
// include additional information such as the most recent commit hash.
var Version = EmptyValue
