package gitrepo

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// --merge-base for merge-tree --write-tree arrived in git 2.40.
var mergeTreeMinVersion = gitVersion{major: 2, minor: 40}

type gitVersion struct {
	major int
	minor int
	patch int
}

func (v gitVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
}

func (v gitVersion) less(other gitVersion) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	return v.patch < other.patch
}

// parseGitVersion accepts "git version 2.44.0" and vendor variants such as
// "git version 2.39.3 (Apple Git-146)" or "2.39.3.windows.1".
func parseGitVersion(out string) (gitVersion, bool) {
	s := strings.TrimSpace(out)
	s = strings.TrimSpace(strings.TrimPrefix(s, "git version"))
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	parts := strings.Split(strings.Trim(s[:end], "."), ".")
	if len(parts) < 2 {
		return gitVersion{}, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return gitVersion{}, false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return gitVersion{}, false
	}
	v := gitVersion{major: major, minor: minor}
	if len(parts) >= 3 {
		v.patch, _ = strconv.Atoi(parts[2])
	}
	return v, true
}

var (
	gitVersionOnce sync.Once
	gitVersionVal  gitVersion
	gitVersionErr  error
)

func installedGitVersion() (gitVersion, error) {
	gitVersionOnce.Do(func() {
		out, err := exec.Command("git", "--version").CombinedOutput()
		if err != nil {
			gitVersionErr = fmt.Errorf("git --version: %w", err)
			return
		}
		v, ok := parseGitVersion(string(out))
		if !ok {
			gitVersionErr = fmt.Errorf("unable to parse git version output: %q", strings.TrimSpace(string(out)))
			return
		}
		gitVersionVal = v
	})
	return gitVersionVal, gitVersionErr
}

func requireGit(min gitVersion) error {
	v, err := installedGitVersion()
	if err != nil {
		return err
	}
	if v.less(min) {
		return fmt.Errorf("git %s is too old; merge simulation requires git >= %s", v, min)
	}
	return nil
}

// CheckMergeTree reports why merge simulation cannot run with the installed
// git, or nil if it can.
func CheckMergeTree() error {
	return requireGit(mergeTreeMinVersion)
}
