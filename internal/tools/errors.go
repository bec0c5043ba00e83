package tools

import "fmt"

// ErrToolNotFound is returned when a tool call targets a name that is
// not registered. Execute converts it into an error payload so the
// model can see the mistake and correct itself.
type ErrToolNotFound struct {
	Name string
}

// Error implements the error interface.
func (e *ErrToolNotFound) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}
