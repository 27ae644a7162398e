package selector

import "fmt"

// InfeasibleSelectionError indicates that no candidate record could match a
// simulated spectrum row within the scaling limit.
type InfeasibleSelectionError struct {
	Row int
}

func (e *InfeasibleSelectionError) Error() string {
	return fmt.Sprintf("no feasible candidate for simulated spectrum row %d (scale limit or pool exhausted)", e.Row)
}
