package quality

import (
	"errors"
	"fmt"
)

var (
	ErrNoJudge    = errors.New("quality judge not configured")
	errEmptyText  = errors.New("no text to judge")
	errNoJudgment = errors.New("judge returned no judgment")
)

type judgePanic struct {
	value any
}

func (p *judgePanic) Error() string {
	return fmt.Sprintf("quality judge panicked: %v", p.value)
}
