package playbook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// transitions is the lifecycle state machine. ARCHIVED is terminal; a new
// major version is a new DRAFT node, not a transition of the predecessor.
var transitions = map[models.PlaybookStatus][]models.PlaybookStatus{
	models.PlaybookDraft:         {models.PlaybookPendingReview},
	models.PlaybookPendingReview: {models.PlaybookActive, models.PlaybookArchived},
	models.PlaybookActive:        {models.PlaybookDeprecated},
	models.PlaybookDeprecated:    {models.PlaybookArchived},
	models.PlaybookArchived:      nil,
}

// CanTransition reports whether the lifecycle allows moving from one status
// to another. Same-status moves are allowed as no-ops.
func CanTransition(from, to models.PlaybookStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ChangeKind classifies a playbook revision for version bumping. MAJOR
// changes alter the ordered step list or the rollback procedure, MINOR adds
// auxiliary steps or refines wording, PATCH is text-only.
type ChangeKind string

const (
	ChangeMajor ChangeKind = "MAJOR"
	ChangeMinor ChangeKind = "MINOR"
	ChangePatch ChangeKind = "PATCH"
)

// NextVersion bumps a semantic version for the given change kind.
func NextVersion(version string, change ChangeKind) (string, error) {
	major, minor, patch, err := parseVersion(version)
	if err != nil {
		return "", err
	}
	switch change {
	case ChangeMajor:
		return fmt.Sprintf("%d.0.0", major+1), nil
	case ChangeMinor:
		return fmt.Sprintf("%d.%d.0", major, minor+1), nil
	case ChangePatch:
		return fmt.Sprintf("%d.%d.%d", major, minor, patch+1), nil
	default:
		return "", faults.Newf(faults.KindValidationFailed, "playbook.NextVersion",
			"unknown change kind %q", change)
	}
}

func parseVersion(v string) (major, minor, patch int, err error) {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return 0, 0, 0, faults.Newf(faults.KindValidationFailed, "playbook.parseVersion",
			"malformed version %q, want major.minor.patch", v)
	}
	nums := make([]int, 3)
	for i, part := range parts {
		n, convErr := strconv.Atoi(part)
		if convErr != nil || n < 0 {
			return 0, 0, 0, faults.Newf(faults.KindValidationFailed, "playbook.parseVersion",
				"malformed version %q, want major.minor.patch", v)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}
