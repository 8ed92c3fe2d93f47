package frame

import "github.com/Masterminds/semver/v3"

// SatisfiesMinVersion reports whether FormatVersion is at or above
// minVersion (the semver constraint ">= minVersion", with no upper bound).
// The CLI's --min-version flag uses it to refuse a run whose frame format
// is older than required.
func SatisfiesMinVersion(minVersion string) (bool, error) {
	constraint, err := semver.NewConstraint(">= " + minVersion)
	if err != nil {
		return false, err
	}
	return constraint.Check(FormatVersion), nil
}
