// Package filtering decides which mirrored repositories take part in
// activity sync.
//
// A Filter combines three rules, evaluated in order:
//
//   - Archived repositories are skipped when SkipArchived is set.
//   - Name rules match the repository name against glob patterns. Exclude
//     patterns take precedence over include patterns; when include patterns
//     are given a name must match at least one of them.
//   - Language rules compare the primary language exactly, ignoring case,
//     with the same include and exclude precedence.
//
// Name patterns use github.com/gobwas/glob syntax:
//
//	"*"           matches any name
//	"api-*"       matches api-server, api-gateway
//	"*-{dev,tmp}" matches sandbox-dev, scratch-tmp
//
// Matching is case insensitive, as GitHub repository names are. Repositories
// that fail the filter keep their mirrored metadata; only their pull
// requests and commits are left untouched by organization passes.
package filtering
