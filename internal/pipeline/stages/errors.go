package stages

import "fmt"

func errMissingUpstream(stage string) error {
	return fmt.Errorf("upstream stage %s has not run", stage)
}
