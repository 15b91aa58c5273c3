package api

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// TestType selects the pipeline shape and the workspace subdirectory
type TestType string

const (
	Comparator  TestType = "comparator"
	Validator   TestType = "validator"
	Benchmarker TestType = "benchmarker"
)

func ParseTestType(s string) (TestType, error) {
	switch s {
	case "comparator", "comparison", "compare", "stress":
		return Comparator, nil
	case "validator", "validate":
		return Validator, nil
	case "benchmarker", "benchmark", "tle":
		return Benchmarker, nil
	}
	return "", fmt.Errorf("unknown test type %q", s)
}

// Role is a named source slot within a test type
type Role string

const (
	RoleGenerator Role = "generator"
	RoleTest      Role = "test"
	RoleCorrect   Role = "correct"
	RoleValidator Role = "validator"
)

// RolesFor returns the roles a test type needs in its workspace.
func RolesFor(tt TestType) mapset.Set[Role] {
	switch tt {
	case Comparator:
		return mapset.NewSet(RoleGenerator, RoleTest, RoleCorrect)
	case Validator:
		return mapset.NewSet(RoleGenerator, RoleTest, RoleValidator)
	case Benchmarker:
		return mapset.NewSet(RoleGenerator, RoleTest)
	}
	return mapset.NewSet[Role]()
}

type Verdict string

const (
	VerdictCorrect             Verdict = "Correct"
	VerdictWrongAnswer         Verdict = "Wrong Answer"
	VerdictPresentationError   Verdict = "Presentation Error"
	VerdictValidatorError      Verdict = "Validator Error"
	VerdictTimeLimitExceeded   Verdict = "Time Limit Exceeded"
	VerdictMemoryLimitExceeded Verdict = "Memory Limit Exceeded"
	VerdictRuntimeError        Verdict = "Runtime Error"
	VerdictAccepted            Verdict = "Accepted"
	VerdictMismatch            Verdict = "Mismatch"
	VerdictMatch               Verdict = "Match"
	VerdictFailed              Verdict = "Failed"
	VerdictCancelled           Verdict = "Cancelled"
)
